package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. The SQL stays
// inside the common subset accepted by both SQLite and Postgres.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create mensagens and conversas",
		SQL: `
			CREATE TABLE mensagens (
				id             TEXT PRIMARY KEY,
				id_conversa_fk TEXT NOT NULL DEFAULT '',
				id_conversa    TEXT NOT NULL DEFAULT '',
				remetente      TEXT NOT NULL,
				conteudo       TEXT NOT NULL,
				timestamp      TEXT NOT NULL
			);

			CREATE INDEX idx_mensagens_timestamp ON mensagens (timestamp);
			CREATE INDEX idx_mensagens_conversa ON mensagens (id_conversa_fk, timestamp);

			CREATE TABLE conversas (
				id_conversa     TEXT PRIMARY KEY,
				nome_contato    TEXT NOT NULL DEFAULT '',
				ultima_mensagem TEXT NOT NULL DEFAULT '',
				timestamp       TEXT NOT NULL,
				status          TEXT NOT NULL DEFAULT 'ativa',
				importante      BOOLEAN NOT NULL DEFAULT FALSE
			);

			CREATE INDEX idx_conversas_timestamp ON conversas (timestamp);
		`,
	},
}
