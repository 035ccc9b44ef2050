// Package schema defines declarative table descriptors and compiles them
// into Postgres DDL and column sets.
//
// A Table describes columns, constraints, and indexes as plain data.
// CreateSchema, CreateTable, CreateIndexes, and CompileColumnSet are pure
// functions over that data: the same descriptor always compiles to
// byte-identical SQL, generated constraint names included. Descriptors
// are treated as immutable input; Normalize returns a modified copy and
// never touches the caller's value.
//
// # Quick Start
//
// Describe a table and compile it:
//
//	users := &schema.Table{
//	    Schema: "tenant1",
//	    Name:   "users",
//	    Columns: []schema.Column{
//	        {Name: "id", Type: "uuid", Default: "gen_random_uuid()"},
//	        {Name: "email", Type: "varchar(255)", NotNull: true},
//	    },
//	    Constraints: schema.Constraints{
//	        PrimaryKey: []string{"id"},
//	        Unique:     [][]string{{"email"}},
//	    },
//	    AuditFields: &schema.AuditConfig{},
//	    SoftDelete:  true,
//	}
//
//	ddl, err := schema.CreateTable(users)
//
// # Audit Fields and Soft Delete
//
// Declaring AuditFields injects created_at, created_by, updated_at, and
// updated_by columns; SoftDelete injects a nullable deactivated_at
// timestamp. Injection is idempotent and skips columns the caller
// already declared. AuditConfig customizes the actor columns:
//
//	schema.AuditConfig{ActorType: "uuid", ActorNullable: true}
//
// # Constraint Names
//
// Unique and foreign-key constraints receive deterministic names built
// from a readable prefix and a short content hash, so repeated
// compilation of an unchanged descriptor never renames a constraint:
//
//	uidx_users_email_1a2b3c4d
//	fk_orders_user_id_5e6f7a8b
//
// # Column Sets
//
// CompileColumnSet derives the INSERT and UPDATE column lists a
// statement builder needs: audit columns, generated columns, and
// server-generated keys are excluded from the caller-owned base set,
// and the audit actor columns are appended where each statement kind
// records them.
//
// All rejected input surfaces as a *DefinitionError naming the table
// and column at fault.
package schema
