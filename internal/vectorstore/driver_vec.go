//go:build sqlite_vec && cgo

package vectorstore

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

var serializeVector = vec.SerializeFloat32

func init() {
	// Loads sqlite-vec into every mattn/go-sqlite3 connection, which provides
	// vec_distance_cosine and vec_distance_l2 natively
	vec.Auto()
}
