// internal/model/recipient.go
package model

type Recipient struct {
	ID           int               `db:"id" json:"id"`
	Name         string            `db:"name" json:"name"`
	Address      string            `db:"address" json:"address"`
	Organization string            `db:"organization" json:"organization"`
	Tag          string            `db:"tag" json:"tag"`
	Attributes   map[string]string `db:"attributes" json:"attributes,omitempty"`
}
