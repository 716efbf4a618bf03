// Package wallet persists a store's identifiers to disk. Public
// records go in as plain JSON; private key material is wrapped with
// XChaCha20-Poly1305 under a passphrase-derived master key, so a
// copied wallet file without the passphrase reveals no secrets.
package wallet

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	_ "modernc.org/sqlite"

	"github.com/cvsouth/tsp-go/store"
	"github.com/cvsouth/tsp-go/vid"
)

// Wallet is a sqlite-backed snapshot of a store.
type Wallet struct {
	db        *sql.DB
	masterKey [32]byte
}

// Open opens (or creates) a wallet database at path. The master key is
// derived from the passphrase.
func Open(path, passphrase string) (*Wallet, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open wallet db: %w", err)
	}

	w := &Wallet{
		db:        db,
		masterKey: sha256.Sum256([]byte(passphrase)),
	}
	if err := w.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init wallet schema: %w", err)
	}
	return w, nil
}

func (w *Wallet) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vids (
		id TEXT PRIMARY KEY,
		public_json BLOB NOT NULL,
		secrets_encrypted BLOB,
		relation_json BLOB NOT NULL,
		relation_vid TEXT NOT NULL,
		parent_vid TEXT NOT NULL,
		tunnel_json BLOB NOT NULL,
		aliases_json BLOB NOT NULL
	);
	`
	_, err := w.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (w *Wallet) Close() error {
	return w.db.Close()
}

// Persist snapshots every record of the store into the wallet,
// replacing previous contents.
func (w *Wallet) Persist(s *store.Store) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin persist: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM vids`); err != nil {
		return fmt.Errorf("clear wallet: %w", err)
	}

	for _, export := range s.ExportVids() {
		publicJSON, err := json.Marshal(export.Vid)
		if err != nil {
			return fmt.Errorf("marshal vid: %w", err)
		}

		var secrets []byte
		if export.Owned != nil {
			privateJSON, err := json.Marshal(export.Owned)
			if err != nil {
				return fmt.Errorf("marshal private vid: %w", err)
			}
			if secrets, err = w.encrypt(privateJSON); err != nil {
				return fmt.Errorf("wrap private vid: %w", err)
			}
		}

		relationJSON, err := json.Marshal(export.Relation)
		if err != nil {
			return fmt.Errorf("marshal relation: %w", err)
		}
		tunnelJSON, err := json.Marshal(export.Tunnel)
		if err != nil {
			return fmt.Errorf("marshal tunnel: %w", err)
		}
		aliasesJSON, err := json.Marshal(export.Aliases)
		if err != nil {
			return fmt.Errorf("marshal aliases: %w", err)
		}

		_, err = tx.Exec(
			`INSERT INTO vids (id, public_json, secrets_encrypted, relation_json, relation_vid, parent_vid, tunnel_json, aliases_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			export.Vid.Identifier(), publicJSON, secrets, relationJSON,
			export.RelationVid, export.ParentVid, tunnelJSON, aliasesJSON,
		)
		if err != nil {
			return fmt.Errorf("insert vid: %w", err)
		}
	}

	return tx.Commit()
}

// Load restores every wallet record into the store.
func (w *Wallet) Load(s *store.Store) error {
	rows, err := w.db.Query(
		`SELECT public_json, secrets_encrypted, relation_json, relation_vid, parent_vid, tunnel_json, aliases_json FROM vids`)
	if err != nil {
		return fmt.Errorf("query wallet: %w", err)
	}
	defer rows.Close()

	var exports []store.ExportVid
	for rows.Next() {
		var publicJSON, secrets, relationJSON, tunnelJSON, aliasesJSON []byte
		var export store.ExportVid
		if err := rows.Scan(&publicJSON, &secrets, &relationJSON,
			&export.RelationVid, &export.ParentVid, &tunnelJSON, &aliasesJSON); err != nil {
			return fmt.Errorf("scan wallet row: %w", err)
		}

		var public vid.Vid
		if err := json.Unmarshal(publicJSON, &public); err != nil {
			return fmt.Errorf("parse vid: %w", err)
		}
		export.Vid = &public

		if len(secrets) > 0 {
			privateJSON, err := w.decrypt(secrets)
			if err != nil {
				return fmt.Errorf("unwrap private vid: %w", err)
			}
			var owned vid.OwnedVid
			if err := json.Unmarshal(privateJSON, &owned); err != nil {
				return fmt.Errorf("parse private vid: %w", err)
			}
			export.Owned = &owned
		}

		if err := json.Unmarshal(relationJSON, &export.Relation); err != nil {
			return fmt.Errorf("parse relation: %w", err)
		}
		if err := json.Unmarshal(tunnelJSON, &export.Tunnel); err != nil {
			return fmt.Errorf("parse tunnel: %w", err)
		}
		if err := json.Unmarshal(aliasesJSON, &export.Aliases); err != nil {
			return fmt.Errorf("parse aliases: %w", err)
		}
		exports = append(exports, export)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate wallet rows: %w", err)
	}

	return s.ImportVids(exports)
}

// encrypt wraps data with the master key; the random nonce travels in
// front of the box.
func (w *Wallet) encrypt(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(w.masterKey[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func (w *Wallet) decrypt(blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("encrypted blob too short")
	}
	aead, err := chacha20poly1305.NewX(w.masterKey[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:], nil)
}
