package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/coinfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

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
	migrateDatabase()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS conversion_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		entries_read INTEGER NOT NULL,
		entries_ignored INTEGER NOT NULL,
		record_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transaction_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		date TEXT NOT NULL,
		received_quantity TEXT,
		received_currency TEXT,
		sent_quantity TEXT,
		sent_currency TEXT,
		fee_amount TEXT,
		fee_currency TEXT,
		tag TEXT,
		remark TEXT,
		FOREIGN KEY(run_id) REFERENCES conversion_runs(id),
		UNIQUE(run_id, seq)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

func migrateDatabase() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transaction_records'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("transaction_records table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("transaction_records table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for transaction_records table", "error", err)
		} else {
			stdlog.Printf("Error checking for transaction_records table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transaction_records)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for transaction_records", "error", err)
		} else {
			stdlog.Printf("Error querying table schema: %v", err)
		}
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
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "error", err)
			} else {
				stdlog.Printf("Error scanning column info: %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info: %v", err)
		}
		return
	}

	if _, ok := columnExists["remark"]; !ok {
		_, err := DB.Exec("ALTER TABLE transaction_records ADD COLUMN remark TEXT")
		if err != nil {
			if logger.L != nil {
				logger.L.Error("Error adding remark column", "error", err)
			} else {
				stdlog.Printf("Error adding remark column: %v", err)
			}
		} else {
			if logger.L != nil {
				logger.L.Info("Added remark column to transaction_records table")
			} else {
				stdlog.Println("Added remark column to transaction_records table")
			}
		}
	}
}
