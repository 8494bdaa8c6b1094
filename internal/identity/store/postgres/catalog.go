package postgres

import (
	"database/sql"

	"servio/internal/identity/merge"
)

// NewRelationCatalog declares every relation type owned by an identity, in
// the fixed migration order. This list is the single source of truth: a new
// owned table means one new entry here plus its schema, nothing else.
func NewRelationCatalog(db *sql.DB) merge.Catalog {
	return merge.Catalog{
		// The extended provider profile migrates first so its sub-records
		// appear after their parent in logs.
		{Relation: "provider_profile", Class: merge.ExclusiveToOne,
			Store: NewRelationTable(db, "provider_profiles", "identity_id")},

		{Relation: "credentials", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "credentials", "identity_id")},
		{Relation: "sessions", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "sessions", "identity_id")},

		{Relation: "role_grants", Class: merge.UniqueCompositeToMany,
			Store: NewKeyedRelationTable(db, "role_grants", "identity_id", "role")},
		{Relation: "category_offerings", Class: merge.UniqueCompositeToMany,
			Store: NewKeyedRelationTable(db, "category_offerings", "identity_id", "category_id")},

		{Relation: "addresses", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "addresses", "identity_id")},
		{Relation: "credit_entries", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "credit_entries", "identity_id")},

		// Orders carry two independent identity foreign keys; each is its own
		// catalog entry over the same table.
		{Relation: "orders_as_client", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "orders", "client_id")},
		{Relation: "orders_as_provider", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "orders", "provider_id")},
		{Relation: "order_audit", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "order_audit", "identity_id")},
		{Relation: "order_invitations", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "order_invitations", "identity_id")},

		// Reviews likewise reference identities as author and as subject.
		{Relation: "reviews_as_author", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "reviews", "author_id")},
		{Relation: "reviews_as_subject", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "reviews", "subject_id")},

		{Relation: "availability_windows", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "availability_windows", "identity_id")},
		{Relation: "payout_entries", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "payout_entries", "identity_id")},

		{Relation: "verification_codes", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "verification_codes", "identity_id")},
		{Relation: "password_reset_tokens", Class: merge.PlainToMany,
			Store: NewRelationTable(db, "password_reset_tokens", "identity_id")},
	}
}
