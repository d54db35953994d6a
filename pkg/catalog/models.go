// Package catalog is the transactional metadata store: users, unclaimed
// account reservations, and the file/folder forest. It owns no ciphertext —
// only the rows that describe where ciphertext lives and who may read it.
package catalog

import "time"

// User is a claimed account record.
type User struct {
	ID                  uint   `gorm:"primaryKey"`
	Username            string `gorm:"uniqueIndex;size:20;not null"`
	StorageQuotaBytes   uint64 `gorm:"not null"`
	PasswordHash        string `gorm:"not null"`
	PasswordPublicSalt  []byte `gorm:"not null"`
	PasswordPrivateSalt []byte `gorm:"not null"`
	MasterKeySalt       []byte `gorm:"not null"`

	Ed25519PrivateKeyEncrypted []byte
	Ed25519PublicKey           []byte
	X25519PrivateKeyEncrypted  []byte
	X25519PublicKey            []byte

	CreatedAt time.Time
}

// UnclaimedReservation is a pre-issued account slot awaiting a claim.
type UnclaimedReservation struct {
	ID                  uint   `gorm:"primaryKey"`
	ClaimCode           string `gorm:"uniqueIndex;size:20;not null"`
	StorageQuotaBytes   uint64 `gorm:"not null"`
	PasswordPublicSalt  []byte `gorm:"not null"`
	PasswordPrivateSalt []byte `gorm:"not null"`
	MasterKeySalt       []byte `gorm:"not null"`

	CreatedAt time.Time
}

// FileEntry is a node (file or folder) in a user's file forest.
type FileEntry struct {
	ID                    uint   `gorm:"primaryKey"`
	OwnerID               uint   `gorm:"index:idx_owner_parent;not null"`
	Handle                string `gorm:"uniqueIndex;size:16;not null"`
	ParentHandle          string `gorm:"index:idx_owner_parent;size:16;not null"`
	SizeBytes             uint64 `gorm:"not null"`
	EncryptedFileCryptKey []byte
	EncryptedMetadata     []byte
	Signature             string `gorm:"size:88"`

	CreatedAt time.Time
}

// IsFolder reports whether the entry has no associated on-disk blob.
func (f *FileEntry) IsFolder() bool {
	return len(f.EncryptedFileCryptKey) == 0
}

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&UnclaimedReservation{},
		&FileEntry{},
	}
}
