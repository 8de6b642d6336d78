package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Player is an index entry for a remote host that has connected to the server.
// The save file remains the source of truth for player data; this only records
// which file belongs to which identity and when it was last used.
type Player struct {
	ID          uint64 `gorm:"primaryKey"`
	Token       string `gorm:"uniqueIndex; not null"`
	SaveFile    string
	Username    string
	LastAddress string
	Sessions    int
	LastSeen    time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}

// FindPlayerByToken returns the Player with the given identity token or nil if
// there is no match.
func FindPlayerByToken(db *gorm.DB, token string) (*Player, error) {
	var player Player
	err := db.Where("token = ?", token).First(&player).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &player, nil
}

// RecordSession adds a finished session to the index entry for player.Token,
// creating the entry on the first session. Empty SaveFile and Username values
// leave the stored ones untouched. A previously deleted entry is restored.
func RecordSession(db *gorm.DB, player *Player) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var existing Player
		err := tx.Unscoped().Where("token = ?", player.Token).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			player.Sessions = 1
			return tx.Create(player).Error
		} else if err != nil {
			return err
		}

		existing.Sessions++
		existing.LastSeen = player.LastSeen
		existing.LastAddress = player.LastAddress
		existing.DeletedAt = gorm.DeletedAt{}
		if player.SaveFile != "" {
			existing.SaveFile = player.SaveFile
		}
		if player.Username != "" {
			existing.Username = player.Username
		}
		if err := tx.Unscoped().Save(&existing).Error; err != nil {
			return err
		}
		*player = existing
		return nil
	})
}

// ListPlayers returns every indexed player, most recently seen first.
func ListPlayers(db *gorm.DB) ([]Player, error) {
	var players []Player
	err := db.Order("last_seen desc").Find(&players).Error
	return players, err
}

// DeletePlayer soft-deletes the index entry for token. The save file is not touched.
func DeletePlayer(db *gorm.DB, token string) error {
	return db.Where("token = ?", token).Delete(&Player{}).Error
}
