package cf

import (
	"fmt"
)

// Normalize converts the map[interface{}]interface{} trees some yaml decoders produce into map[string]interface{}
// trees that Load understands. Values of any other type are returned as-is.
//
func Normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		return MapIToMapS(v)

	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, e := range v {
			out[k] = Normalize(e)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = Normalize(e)
		}
		return out

	default:
		return v
	}
}

func MapIToMapS(in map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[fmt.Sprintf("%v", k)] = Normalize(v)
	}
	return out
}
