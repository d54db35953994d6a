package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pineappleswan/treasury/internal/logger"
	"github.com/pineappleswan/treasury/pkg/blob"
)

// Config contains catalog store configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	Path string
}

// ApplyDefaults fills in a default database path if unset.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "databases/userdata.db"
	}
}

// Store is the single-writer embedded relational catalog described by
// the Catalog Store component: users, unclaimed reservations, and the
// file/folder forest.
type Store struct {
	db *gorm.DB

	writeMu   sync.Mutex
	usedCodes map[string]struct{}
}

// New opens (creating if necessary) the catalog database at config.Path,
// running schema auto-migration under write-ahead logging.
func New(config Config) (*Store, error) {
	config.ApplyDefaults()

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL + busy-timeout allow concurrent readers alongside the single writer.
	dsn := config.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	dialector := sqlite.Open(dsn)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("migrate catalog schema: %w", err)
	}

	return &Store{
		db:        db,
		usedCodes: make(map[string]struct{}),
	}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is reachable.
func (s *Store) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ReservationSalts carries the three salts issued to a pre-provisioned account.
type ReservationSalts struct {
	PasswordPublicSalt  []byte
	PasswordPrivateSalt []byte
	MasterKeySalt       []byte
}

// ReserveAccount inserts a new UnclaimedReservation and returns its claim code.
func (s *Store) ReserveAccount(quota uint64, salts ReservationSalts) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	code, err := blob.GenerateAlphanumeric(blob.ClaimCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate claim code: %w", err)
	}

	reservation := &UnclaimedReservation{
		ClaimCode:           code,
		StorageQuotaBytes:   quota,
		PasswordPublicSalt:  salts.PasswordPublicSalt,
		PasswordPrivateSalt: salts.PasswordPrivateSalt,
		MasterKeySalt:       salts.MasterKeySalt,
	}

	if err := s.db.Create(reservation).Error; err != nil {
		return "", fmt.Errorf("insert reservation: %w", err)
	}

	return code, nil
}

// LookupReservation returns the reservation for a claim code, for the
// claim-probe phase.
func (s *Store) LookupReservation(code string) (*UnclaimedReservation, error) {
	var reservation UnclaimedReservation
	err := s.db.Where("claim_code = ?", code).First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// Keypairs carries the opaque, client-sealed key material attached to a claim.
type Keypairs struct {
	Ed25519PrivateKeyEncrypted []byte
	Ed25519PublicKey           []byte
	X25519PrivateKeyEncrypted  []byte
	X25519PublicKey            []byte
}

// Claim consumes a reservation and creates the resulting User, within a
// single transaction. The in-memory used-codes set is consulted first to
// short-circuit an already-consumed code before a transaction is opened;
// the transaction remains the source of truth for races.
func (s *Store) Claim(code, username, passwordHash string, keypairs Keypairs) (*User, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, used := s.usedCodes[code]; used {
		return nil, ErrClaimCodeUsed
	}

	var created *User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var reservation UnclaimedReservation
		if err := tx.Where("claim_code = ?", code).First(&reservation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		var existing User
		err := tx.Where("username = ?", username).First(&existing).Error
		if err == nil {
			return ErrDuplicateUsername
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user := &User{
			Username:                   username,
			StorageQuotaBytes:          reservation.StorageQuotaBytes,
			PasswordHash:               passwordHash,
			PasswordPublicSalt:         reservation.PasswordPublicSalt,
			PasswordPrivateSalt:        reservation.PasswordPrivateSalt,
			MasterKeySalt:              reservation.MasterKeySalt,
			Ed25519PrivateKeyEncrypted: keypairs.Ed25519PrivateKeyEncrypted,
			Ed25519PublicKey:           keypairs.Ed25519PublicKey,
			X25519PrivateKeyEncrypted:  keypairs.X25519PrivateKeyEncrypted,
			X25519PublicKey:            keypairs.X25519PublicKey,
		}
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicateUsername
			}
			return err
		}

		if err := tx.Delete(&reservation).Error; err != nil {
			return err
		}

		created = user
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.usedCodes[code] = struct{}{}
	logger.Info("account claimed", logger.Username(username))
	return created, nil
}

// LookupUser returns the User with the given username, or ErrUserNotFound.
func (s *Store) LookupUser(username string) (*User, error) {
	var user User
	err := s.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LookupUserByID returns the User with the given id, or ErrUserNotFound.
func (s *Store) LookupUserByID(id uint) (*User, error) {
	var user User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListChildren returns all FileEntries directly under parentHandle for ownerID.
func (s *Store) ListChildren(ownerID uint, parentHandle string) ([]FileEntry, error) {
	var entries []FileEntry
	err := s.db.Where("owner_id = ? AND parent_handle = ?", ownerID, parentHandle).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// InsertFile inserts a new FileEntry, verifying the parent handle (unless
// root) belongs to the same owner.
func (s *Store) InsertFile(ownerID uint, entry *FileEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entry.OwnerID = ownerID

	return s.db.Transaction(func(tx *gorm.DB) error {
		if entry.ParentHandle != blob.RootHandle {
			var parent FileEntry
			err := tx.Where("handle = ? AND owner_id = ?", entry.ParentHandle, ownerID).First(&parent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidParent
			}
			if err != nil {
				return err
			}
		}

		if err := tx.Create(entry).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("handle collision: %w", err)
			}
			return err
		}
		return nil
	})
}

// UpdateMetadata replaces the encrypted metadata of the FileEntry identified
// by handle, only if owned by ownerID. Returns ErrNotOwner if no matching
// row exists for this owner.
func (s *Store) UpdateMetadata(ownerID uint, handle string, newMetadata []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result := s.db.Model(&FileEntry{}).
		Where("handle = ? AND owner_id = ?", handle, ownerID).
		Update("encrypted_metadata", newMetadata)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotOwner
	}
	return nil
}

// BytesUsed returns the sum of size_bytes over all files owned by ownerID.
func (s *Store) BytesUsed(ownerID uint) (uint64, error) {
	var total uint64
	err := s.db.Model(&FileEntry{}).
		Where("owner_id = ?", ownerID).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// FileOwner returns the owner_id of the FileEntry identified by handle.
func (s *Store) FileOwner(handle string) (uint, error) {
	var entry FileEntry
	err := s.db.Select("owner_id").Where("handle = ?", handle).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrFileNotFound
	}
	if err != nil {
		return 0, err
	}
	return entry.OwnerID, nil
}

// GetFile returns the FileEntry identified by handle, verifying ownership.
func (s *Store) GetFile(ownerID uint, handle string) (*FileEntry, error) {
	var entry FileEntry
	err := s.db.Where("handle = ?", handle).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return &entry, nil
}

// ListUsers returns every claimed account, for the admin console.
func (s *Store) ListUsers() ([]User, error) {
	var users []User
	if err := s.db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListReservations returns every unclaimed reservation, for the admin console.
func (s *Store) ListReservations() ([]UnclaimedReservation, error) {
	var reservations []UnclaimedReservation
	if err := s.db.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// isUniqueConstraintError reports whether err is a unique-constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
