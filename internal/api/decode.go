package api

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/aliceafriedman/BikeCounters/internal/models"
)

// decodeRecords parses a JSON array of objects, keeping each object's
// field order.
func decodeRecords(body []byte) ([]models.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("expected a JSON array, got %s", root.Type)
	}

	records := make([]models.Record, 0)
	var err error
	i := 0
	root.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			err = fmt.Errorf("element %d is not an object", i)
			return false
		}
		rec := models.NewRecord()
		item.ForEach(func(key, value gjson.Result) bool {
			rec.Set(key.String(), renderValue(value))
			return true
		})
		records = append(records, rec)
		i++
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// renderValue converts a JSON value to its CSV cell text.
func renderValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.False:
		return "False"
	case gjson.True:
		return "True"
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return v.Str
	default:
		return string(pretty.Ugly([]byte(v.Raw)))
	}
}
