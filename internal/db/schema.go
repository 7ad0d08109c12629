package db

// SchemaSQL contains the metadata store schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- SCOPE TABLE (taxonomy nodes: brands and models)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS scope SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON scope TYPE string;
    DEFINE FIELD IF NOT EXISTS kind ON scope TYPE string ASSERT $value IN ["brand", "model"];
    DEFINE FIELD IF NOT EXISTS parent ON scope TYPE option<record<scope>>;
    DEFINE FIELD IF NOT EXISTS created_at ON scope TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS scope_name ON scope FIELDS name UNIQUE;

    -- ==========================================================================
    -- DOCUMENT TABLE (metadata records for indexed files)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS scope ON document TYPE record<scope>;
    DEFINE FIELD IF NOT EXISTS title ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS file_name ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS pages ON document TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS chunks ON document TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS uploaded_at ON document TYPE datetime DEFAULT time::now();

    -- At most one record per (scope, title) pair.
    DEFINE INDEX IF NOT EXISTS document_scope_title ON document FIELDS scope, title UNIQUE;
    DEFINE INDEX IF NOT EXISTS document_scope ON document FIELDS scope;
`
