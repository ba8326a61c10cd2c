package migrations

import "embed"

// PostgresFS embeds the raw transaction cache schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the price point schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
