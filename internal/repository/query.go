package repository

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxPerPage limita el tamaño de página
const maxPerPage = 100

var upcPattern = regexp.MustCompile(`^\d{12}$`)

// ParsePaging convierte los parámetros de paginación de la query string
func ParsePaging(page, perPage string) (int, int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil {
		return 0, 0, ErrInvalidPaging
	}
	pp, err := strconv.Atoi(strings.TrimSpace(perPage))
	if err != nil {
		return 0, 0, ErrInvalidPaging
	}
	if err := validatePaging(p, pp); err != nil {
		return 0, 0, err
	}
	return p, pp, nil
}

func validatePaging(page, perPage int) error {
	if page < 1 || perPage < 1 {
		return ErrInvalidPaging
	}
	if perPage > maxPerPage {
		return ErrPerPageTooLarge
	}
	// (page-1)*perPage debe caber en el skip de int64
	if int64(page-1) > math.MaxInt64/int64(perPage) {
		return ErrInvalidPaging
	}
	return nil
}

// identifierFilter resuelve el identificador: 24 hex busca por _id, 12 dígitos por upc
func identifierFilter(identifier string) (bson.M, error) {
	if oid, err := primitive.ObjectIDFromHex(identifier); err == nil {
		return bson.M{"_id": oid}, nil
	}
	if upcPattern.MatchString(identifier) {
		return bson.M{"upc": identifier}, nil
	}
	return nil, ErrInvalidID
}

// searchFilter busca q como subcadena literal, sin distinguir mayúsculas, en name,
// brand o category, o exacto contra upc
func searchFilter(q string) bson.M {
	q = strings.TrimSpace(q)
	if q == "" {
		return bson.M{}
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	return bson.M{
		"$or": []bson.M{
			{"name": pattern},
			{"brand": pattern},
			{"category": pattern},
			{"upc": q},
		},
	}
}

// listSort ordena por el valid_to más reciente; _id mantiene estables las páginas
func listSort() bson.D {
	return bson.D{
		{Key: "history.valid_to", Value: -1},
		{Key: "_id", Value: 1},
	}
}

func skipFor(page, perPage int) int64 {
	return int64(page-1) * int64(perPage)
}
