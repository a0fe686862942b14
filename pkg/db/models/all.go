package models

// All lists every persisted model in dependency order. Used for AutoMigrate
// in tests; production schema is owned by goose migrations.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&ProductImage{},
		&ProductFeature{},
		&PromoCode{},
		&Cart{},
		&CartItem{},
		&OrderCounter{},
		&Order{},
		&OrderItem{},
		&ProductLike{},
		&NewsletterSubscriber{},
		&Review{},
		&Banner{},
		&BestSeller{},
		&Toast{},
		&BlogPost{},
		&CallToAction{},
		&Promotion{},
		&LegalPage{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
