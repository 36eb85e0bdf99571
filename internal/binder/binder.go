package binder

import (
	"log/slog"
	"strconv"

	"github.com/nkurosawa/taskrelay/internal/model"
)

// Field names with special binding rules. Anything not listed here falls
// into the generic default handling.
const (
	fieldImage  = "image"
	fieldText   = "text"
	fieldPrompt = "prompt"
	fieldSelect = "select"
)

// numericFields are generic fields with a numeric nature; when the form
// carries no value they bind to "0".
var numericFields = map[string]bool{
	"offsetX":  true,
	"offsetY":  true,
	"scale":    true,
	"rotation": true,
	"strength": true,
}

// tagFields are enumerated-tag fields; when the form carries no value they
// bind to the provider's sentinel literal.
var tagFields = map[string]bool{
	"shape": true,
	"style": true,
}

const tagSentinel = "none"

// Bind resolves a node template against the uploaded assets and form
// fields, producing one binding per template entry. It never fails: every
// gap degrades to a logged default, and every bound value is a string.
// Image-typed nodes consume asset tokens in arrival order.
func Bind(template []model.TemplateNode, assets []model.UploadedAsset, fields map[string]string, logger *slog.Logger) []model.NodeBinding {
	bindings := make([]model.NodeBinding, 0, len(template))
	nextAsset := 0

	for _, node := range template {
		value := node.FieldValue

		switch node.FieldName {
		case fieldImage:
			if nextAsset < len(assets) {
				value = string(assets[nextAsset].Token)
				nextAsset++
			} else {
				value = ""
				logger.Warn("no uploaded asset left for image node",
					"node_id", node.NodeID,
					"param_key", node.ParamKey,
				)
			}

		case fieldText, fieldPrompt:
			if v, ok := lookup(fields, node); ok {
				value = v
			}

		case fieldSelect:
			// Only the primary param key binds a select; the derived-key
			// retry applies to text and prompt alone.
			if v, ok := fields[node.ParamKey]; ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					value = strconv.FormatInt(int64(f), 10)
				} else {
					logger.Warn("select value is not numeric, keeping template value",
						"node_id", node.NodeID,
						"value", v,
					)
				}
			}

		default:
			if v, ok := lookup(fields, node); ok {
				value = v
			} else {
				value = defaultFor(node.FieldName)
			}
		}

		bindings = append(bindings, model.NodeBinding{
			NodeID:     node.NodeID,
			FieldName:  node.FieldName,
			FieldValue: value,
		})
	}

	return bindings
}

// lookup resolves a node's form value by its paramKey, retrying with the
// derived key fieldName_nodeId when the primary key is absent.
func lookup(fields map[string]string, node model.TemplateNode) (string, bool) {
	if v, ok := fields[node.ParamKey]; ok {
		return v, true
	}
	if v, ok := fields[node.FieldName+"_"+node.NodeID]; ok {
		return v, true
	}
	return "", false
}

// defaultFor picks the fieldName-specific default for a generic field with
// no form value.
func defaultFor(fieldName string) string {
	switch {
	case numericFields[fieldName]:
		return "0"
	case tagFields[fieldName]:
		return tagSentinel
	default:
		return ""
	}
}
