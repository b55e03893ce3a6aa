package regulation

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// hclCatalog is the HCL form of a catalog:
//
//	regulation "HIPAA" {
//	  description = "Health Insurance Portability and Accountability Act"
//	  keywords    = distinct(concat(["phi", "ephi"], ["protected health information"]))
//	}
type hclCatalog struct {
	Regulations []hclRegulation `hcl:"regulation,block"`
}

type hclRegulation struct {
	Name        string   `hcl:"name,label"`
	Description string   `hcl:"description,optional"`
	Keywords    []string `hcl:"keywords,optional"`
}

// catalogEvalContext exposes a few list and string helpers to catalog authors
func catalogEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"lower":     stdlib.LowerFunc,
			"upper":     stdlib.UpperFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"concat":    stdlib.ConcatFunc,
			"distinct":  stdlib.DistinctFunc,
			"format":    stdlib.FormatFunc,
		},
	}
}

func decodeHCL(data []byte, filename string) ([]Regulation, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL catalog %s: %s", filename, diags.Error())
	}

	var cfg hclCatalog
	diags = gohcl.DecodeBody(file.Body, catalogEvalContext(), &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL catalog %s: %s", filename, diags.Error())
	}

	regs := make([]Regulation, 0, len(cfg.Regulations))
	for _, r := range cfg.Regulations {
		regs = append(regs, Regulation{
			Name:        r.Name,
			Description: r.Description,
			Keywords:    r.Keywords,
		})
	}
	return regs, nil
}
