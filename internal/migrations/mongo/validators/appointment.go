package validators

import "go.mongodb.org/mongo-driver/bson"

var AppointmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"slot_id",
			"doctor_id",
			"patient",
			"date",
			"start_time",
			"reason",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"slot_id": bson.M{
				"bsonType": "string",
			},

			"patient": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"reason": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 500,
			},

			"chief_complaint": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"pain_scale": bson.M{
						"bsonType": []string{"int", "long"},
						"minimum":  0,
						"maximum":  10,
					},
					"associated_symptoms": bson.M{
						"bsonType": "array",
						"maxItems": 10,
						"items": bson.M{
							"bsonType": "string",
						},
					},
				},
			},

			"appointment_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"consultation",
					"follow_up",
					"checkup",
					"teleconsultation",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"completed",
					"cancelled",
					"superseded",
				},
			},

			"rescheduled_from": bson.M{
				"bsonType": "string",
			},

			"superseded_by": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
