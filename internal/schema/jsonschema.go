package schema

import "go.mongodb.org/mongo-driver/v2/bson"

var bsonTypes = map[string]string{
	TypeString:  "string",
	TypeNumber:  "double",
	TypeInteger: "long",
	TypeBoolean: "bool",
	TypeObject:  "object",
	TypeArray:   "array",
}

// JSONSchema renders the spec as a $jsonSchema validator document suitable for
// attaching at collection creation. Submitted fields live under the "fields"
// subdocument; owner_id and geo are reserved attributes on every document.
func (s Spec) JSONSchema() bson.M {
	properties := bson.M{}
	var required []string

	for name, field := range s {
		prop := bson.M{}
		if bsonType, ok := bsonTypes[field.Type]; ok {
			// Accept int32 alongside int64 for integer fields.
			if field.Type == TypeInteger {
				prop["bsonType"] = bson.A{"int", "long"}
			} else if field.Type == TypeNumber {
				prop["bsonType"] = bson.A{"double", "int", "long", "decimal"}
			} else {
				prop["bsonType"] = bsonType
			}
		}
		if field.MinLength != nil {
			prop["minLength"] = *field.MinLength
		}
		if field.MaxLength != nil {
			prop["maxLength"] = *field.MaxLength
		}
		if field.Minimum != nil {
			prop["minimum"] = *field.Minimum
		}
		if field.Maximum != nil {
			prop["maximum"] = *field.Maximum
		}
		if field.Pattern != "" {
			prop["pattern"] = field.Pattern
		}
		if len(field.Enum) > 0 {
			prop["enum"] = field.Enum
		}
		properties[name] = prop
		if field.Required {
			required = append(required, name)
		}
	}

	fieldsSchema := bson.M{"bsonType": "object"}
	if len(properties) > 0 {
		fieldsSchema["properties"] = properties
	}
	if len(required) > 0 {
		fieldsSchema["required"] = required
	}

	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"owner_id"},
			"properties": bson.M{
				"owner_id": bson.M{"bsonType": "string"},
				"fields":   fieldsSchema,
			},
		},
	}
}
