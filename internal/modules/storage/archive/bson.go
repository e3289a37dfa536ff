package archive

import (
	"bytes"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// encodeBSONRows writes each row as one BSON document, back to back.
// The stream is the plain mongodump layout: concatenated documents,
// each carrying its own length prefix.
func encodeBSONRows(rows []map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for _, row := range rows {
		doc := bson.M{}
		for k, v := range row {
			doc[k] = normalizeArchiveValue(v)
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

func normalizeArchiveValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC()
	default:
		return v
	}
}
