package specification

import "gorm.io/gorm"

// Specification narrows a gorm query. Repositories compose them in order.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

func Apply(db *gorm.DB, specs ...Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}
