package store

// Schema-as-documentation: this file exists purely to describe the tables
// pkg/database/migrations/000001_init_schema.up.sql creates, the same
// role the teacher's ent/schema/*.go structs used to serve before ent was
// dropped (see DESIGN.md). It is never executed; the migration file is
// the single source of truth for column names and constraints.

// Table projects: id, name, created_at, updated_at.
// Table spaces: id, project_id fk, name, created_at, updated_at.
// Table sessions: id, project_id fk, space_id fk nullable, created_at, updated_at.
// Table tasks: id, session_id fk, task_order, status, is_planning,
//   space_digested, data jsonb, raw_message_ids jsonb, created_at, updated_at.
//   unique(session_id, task_order); check status in (pending,running,success,failed).
// Table messages: id, session_id fk, task_id fk nullable, role, parts jsonb, created_at.
// Table blocks: id, space_id fk, parent_id fk nullable, type, title, props
//   jsonb, sort, is_archived, created_at, updated_at. unique(parent_id, sort).
// Table block_embeddings: id, block_id fk, phase, vector(pgvector), created_at.
// Table tool_references: id, project_id fk, name, created_at. unique(project_id, name).
// Table tool_sops: id, block_id fk, tool_ref_id fk, action, created_at.
