package models

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product representa un producto del catálogo con su historial de precios embebido
type Product struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UPC      string             `json:"upc,omitempty" bson:"upc,omitempty" validate:"omitempty,len=12,number"`
	Category []string           `json:"category" bson:"category"`
	Brand    string             `json:"brand" bson:"brand"`
	Name     string             `json:"name" bson:"name"`
	Size     float64            `json:"size,omitempty" bson:"size,omitempty" validate:"gte=0"`
	Unit     string             `json:"unit,omitempty" bson:"unit,omitempty"`
	Image    string             `json:"image,omitempty" bson:"image,omitempty" validate:"omitempty,url"`
	History  []PriceEntry       `json:"history" bson:"history" validate:"dive"`
}

// Normalize deja las listas vacías en lugar de nil
func (p *Product) Normalize() {
	if p.Category == nil {
		p.Category = []string{}
	}
	if p.History == nil {
		p.History = []PriceEntry{}
	}
}

// ProductUpdate representa los campos actualizables de un producto.
// Cualquier otra clave del cuerpo JSON se rechaza.
type ProductUpdate struct {
	UPC      *string       `json:"upc,omitempty" validate:"omitempty,len=12,number"`
	Category *[]string     `json:"category,omitempty"`
	Brand    *string       `json:"brand,omitempty"`
	Name     *string       `json:"name,omitempty"`
	Size     *float64      `json:"size,omitempty" validate:"omitempty,gte=0"`
	Unit     *string       `json:"unit,omitempty"`
	Image    *string       `json:"image,omitempty" validate:"omitempty,url"`
	History  *[]PriceEntry `json:"history,omitempty" validate:"omitempty,dive"`
}

// Fields construye el documento $set con solo los campos presentes
func (u *ProductUpdate) Fields() bson.M {
	set := bson.M{}
	if u.UPC != nil {
		set["upc"] = *u.UPC
	}
	if u.Category != nil {
		category := *u.Category
		if category == nil {
			category = []string{}
		}
		set["category"] = category
	}
	if u.Brand != nil {
		set["brand"] = *u.Brand
	}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Size != nil {
		set["size"] = *u.Size
	}
	if u.Unit != nil {
		set["unit"] = *u.Unit
	}
	if u.Image != nil {
		set["image"] = *u.Image
	}
	if u.History != nil {
		history := *u.History
		if history == nil {
			history = []PriceEntry{}
		}
		AssignEntryIDs(history)
		set["history"] = history
	}
	return set
}
