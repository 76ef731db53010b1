package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

// PriceEntry es un precio registrado para un producto en una tienda
type PriceEntry struct {
	ID       primitive.ObjectID `json:"id" bson:"_id"`
	Store    string             `json:"store" bson:"store" validate:"required"`
	WasPrice *float64           `json:"was_price,omitempty" bson:"was_price,omitempty" validate:"omitempty,gte=0"`
	Price    float64            `json:"price" bson:"price" validate:"gte=0"`
	ValidTo  Date               `json:"valid_to" bson:"valid_to" validate:"required"`
}

// AssignEntryIDs genera un ID nuevo para cada entrada; los IDs del cliente se ignoran
func AssignEntryIDs(entries []PriceEntry) {
	for i := range entries {
		entries[i].ID = primitive.NewObjectID()
	}
}

// Date es una fecha de calendario guardada como datetime BSON
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate acepta "2006-01-02" o RFC 3339
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) String() string {
	t := d.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(d.Time)
}

func (d *Date) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var tm time.Time
	if err := bson.UnmarshalValue(t, data, &tm); err != nil {
		return err
	}
	d.Time = tm.UTC()
	return nil
}
