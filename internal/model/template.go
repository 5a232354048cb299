// internal/model/template.go
package model

type Template struct {
	ID     int    `db:"id" json:"id"`
	PoolID int    `db:"pool_id" json:"pool_id"`
	Name   string `db:"name" json:"name"`
	Body   string `db:"body" json:"body"`
}
