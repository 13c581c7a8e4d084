package model

import "time"

// MainSong is one of the built-in soundtrack songs.
type MainSong struct {
	MainSongID uint8  `json:"main_song_id" msgpack:"main_song_id"`
	Name       string `json:"name" msgpack:"name"`
	Artist     string `json:"artist" msgpack:"artist"`
}

// PartialLevel is a level as it appears in search results, without its level data.
type PartialLevel struct {
	LevelID        uint64    `json:"level_id" msgpack:"level_id"`
	Name           string    `json:"name" msgpack:"name"`
	Description    string    `json:"description,omitempty" msgpack:"description"`
	Version        uint32    `json:"version" msgpack:"version"`
	CreatorID      uint64    `json:"creator_id" msgpack:"creator_id"`
	Difficulty     int8      `json:"difficulty" msgpack:"difficulty"`
	Downloads      uint32    `json:"downloads" msgpack:"downloads"`
	MainSong       *MainSong `json:"main_song,omitempty" msgpack:"main_song"`
	CustomSongID   *uint64   `json:"custom_song_id,omitempty" msgpack:"custom_song_id"`
	Gdv            uint8     `json:"gdv" msgpack:"gdv"`
	Likes          int32     `json:"likes" msgpack:"likes"`
	Length         uint8     `json:"length" msgpack:"length"`
	Stars          uint8     `json:"stars" msgpack:"stars"`
	Featured       int32     `json:"featured" msgpack:"featured"`
	CopyOf         uint64    `json:"copy_of,omitempty" msgpack:"copy_of"`
	Coins          uint8     `json:"coins" msgpack:"coins"`
	CoinsVerified  bool      `json:"coins_verified" msgpack:"coins_verified"`
	StarsRequested uint8     `json:"stars_requested,omitempty" msgpack:"stars_requested"`
	IsEpic         bool      `json:"is_epic" msgpack:"is_epic"`
	IsDemon        bool      `json:"is_demon" msgpack:"is_demon"`
	IsAuto         bool      `json:"is_auto" msgpack:"is_auto"`
	IsTwoPlayer    bool      `json:"is_two_player" msgpack:"is_two_player"`
}

func (l PartialLevel) Kind() Kind { return KindPartialLevel }
func (l PartialLevel) ID() uint64 { return l.LevelID }

// References returns the level's custom song reference, if it has one.
func (l PartialLevel) References() []Reference {
	if l.CustomSongID == nil {
		return nil
	}
	return []Reference{{
		Target: Key{Kind: KindSong, ID: *l.CustomSongID},
		From:   Key{Kind: KindLevel, ID: l.LevelID},
	}}
}

// Level is a fully downloaded level.
type Level struct {
	PartialLevel
	LevelData       []byte        `json:"level_data,omitempty" msgpack:"level_data"`
	Password        string        `json:"password,omitempty" msgpack:"password"`
	TimeSinceUpload time.Duration `json:"time_since_upload" msgpack:"time_since_upload"`
	TimeSinceUpdate time.Duration `json:"time_since_update" msgpack:"time_since_update"`
	HighObjectCount bool          `json:"high_object_count" msgpack:"high_object_count"`
}

func (l Level) Kind() Kind { return KindLevel }

// NewgroundsSong is a custom song hosted on Newgrounds.
type NewgroundsSong struct {
	SongID   uint64  `json:"song_id" msgpack:"song_id"`
	Name     string  `json:"name" msgpack:"name"`
	ArtistID uint64  `json:"artist_id" msgpack:"artist_id"`
	Artist   string  `json:"artist" msgpack:"artist"`
	Filesize float64 `json:"filesize" msgpack:"filesize"`
	Alt      string  `json:"alt,omitempty" msgpack:"alt"`
	Banned   bool    `json:"banned" msgpack:"banned"`
	Link     string  `json:"link" msgpack:"link"`
}

func (s NewgroundsSong) Kind() Kind { return KindSong }
func (s NewgroundsSong) ID() uint64 { return s.SongID }

// Creator is the short user record attached to level listings.
type Creator struct {
	UserID    uint64 `json:"user_id" msgpack:"user_id"`
	Name      string `json:"name" msgpack:"name"`
	AccountID uint64 `json:"account_id,omitempty" msgpack:"account_id"`
}

func (c Creator) Kind() Kind { return KindCreator }
func (c Creator) ID() uint64 { return c.UserID }
