package models

// All lists every persisted model; tests and the sqlite dev path migrate from it.
func All() []any {
	return []any{
		&Product{},
		&Sku{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OrderAudit{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
