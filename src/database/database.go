package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/treasury/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// Schema holds the ledger tables. Monetary columns are TEXT so sqlite never
// coerces decimal strings into floats.
const createTableStatement = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	category TEXT NOT NULL,
	currency TEXT NOT NULL,
	amount TEXT NOT NULL,
	commission TEXT NOT NULL DEFAULT '0',
	net_amount TEXT NOT NULL DEFAULT '0',
	psp TEXT,
	payment_method TEXT,
	amount_try TEXT,
	commission_try TEXT,
	net_amount_try TEXT,
	exchange_rate TEXT
);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
CREATE INDEX IF NOT EXISTS idx_transactions_psp ON transactions(psp);

CREATE TABLE IF NOT EXISTS exchange_rates (
	date TEXT PRIMARY KEY,
	usd_to_tl TEXT NOT NULL,
	eur_to_tl TEXT,
	is_manual BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS psp_commission_rates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	psp_name TEXT NOT NULL,
	commission_rate TEXT NOT NULL,
	effective_from TEXT NOT NULL,
	effective_until TEXT,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_commission_rates_psp ON psp_commission_rates(psp_name, effective_from);
`

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}

	if _, err := DB.Exec(createTableStatement); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	migrateExchangeRateTable(DB)

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateExchangeRateTable adds columns that predate the schema above. The
// eur_to_tl and is_manual columns arrived after the table first shipped.
func migrateExchangeRateTable(db *sql.DB) {
	rows, err := db.Query("PRAGMA table_info(exchange_rates)")
	if err != nil {
		logger.L.Error("Error querying table schema for 'exchange_rates'", "error", err)
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			logger.L.Error("Error scanning column info for 'exchange_rates'", "error", err)
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		logger.L.Error("Error iterating over column info for 'exchange_rates'", "error", err)
		return
	}

	if _, ok := columnExists["eur_to_tl"]; !ok {
		if _, err := db.Exec("ALTER TABLE exchange_rates ADD COLUMN eur_to_tl TEXT"); err != nil {
			logger.L.Error("Error adding 'eur_to_tl' column to 'exchange_rates' table", "error", err)
		} else {
			logger.L.Info("Added 'eur_to_tl' column to 'exchange_rates' table")
		}
	}
	if _, ok := columnExists["is_manual"]; !ok {
		if _, err := db.Exec("ALTER TABLE exchange_rates ADD COLUMN is_manual BOOLEAN NOT NULL DEFAULT FALSE"); err != nil {
			logger.L.Error("Error adding 'is_manual' column to 'exchange_rates' table", "error", err)
		} else {
			logger.L.Info("Added 'is_manual' column to 'exchange_rates' table")
		}
	}
}
