package request

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LevelRequestType selects the server-side listing a levels request searches.
type LevelRequestType int

const (
	Search LevelRequestType = iota
	MostDownloaded
	MostLiked
	Trending
	Recent
	User
	Featured
	Magic
	Awarded
	HallOfFame
)

func (t LevelRequestType) String() string {
	switch t {
	case Search:
		return "search"
	case MostDownloaded:
		return "most_downloaded"
	case MostLiked:
		return "most_liked"
	case Trending:
		return "trending"
	case Recent:
		return "recent"
	case User:
		return "user"
	case Featured:
		return "featured"
	case Magic:
		return "magic"
	case Awarded:
		return "awarded"
	case HallOfFame:
		return "hall_of_fame"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseLevelRequestType is the inverse of LevelRequestType.String.
func ParseLevelRequestType(s string) (LevelRequestType, error) {
	for t := Search; t <= HallOfFame; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return Search, fmt.Errorf("unknown level request type %q", s)
}

// SongFilter restricts a search to levels using a particular song.
type SongFilter struct {
	ID     uint64
	Custom bool
}

// CustomSong filters for levels using the given Newgrounds song.
func CustomSong(id uint64) *SongFilter {
	return &SongFilter{ID: id, Custom: true}
}

// MainSong filters for levels using the given built-in song.
func MainSong(id uint64) *SongFilter {
	return &SongFilter{ID: id}
}

// SearchFilters are the optional filters of a levels search.
type SearchFilters struct {
	Uncompleted bool
	Completed   bool
	Featured    bool
	Original    bool
	TwoPlayer   bool
	Coins       bool
	Epic        bool
	Song        *SongFilter
}

func (f SearchFilters) parts() []string {
	parts := []string{
		kv("uncompleted", f.Uncompleted),
		kv("completed", f.Completed),
		kv("featured", f.Featured),
		kv("original", f.Original),
		kv("two_player", f.TwoPlayer),
		kv("coins", f.Coins),
		kv("epic", f.Epic),
	}
	if f.Song != nil {
		parts = append(parts, kv("song", f.Song.ID), kv("custom_song", f.Song.Custom))
	}
	return parts
}

// LevelsRequest searches for levels. It is paginatable.
type LevelsRequest struct {
	Type    LevelRequestType
	Search  string
	Filters SearchFilters
	Page    uint32
}

var _ Paginatable[LevelsRequest] = LevelsRequest{}

// WithSearch returns a copy of the request searching for the given string.
func (r LevelsRequest) WithSearch(search string) LevelsRequest {
	r.Search = search
	return r
}

// WithID returns a copy of the request searching for a single level id.
func (r LevelsRequest) WithID(levelID uint64) LevelsRequest {
	r.Search = strconv.FormatUint(levelID, 10)
	return r
}

// WithType returns a copy of the request using the given listing.
func (r LevelsRequest) WithType(t LevelRequestType) LevelsRequest {
	r.Type = t
	return r
}

// WithFilters returns a copy of the request using the given filters.
func (r LevelsRequest) WithFilters(f SearchFilters) LevelsRequest {
	r.Filters = f
	return r
}

// WithPage returns a copy of the request for the given page.
func (r LevelsRequest) WithPage(page uint32) LevelsRequest {
	r.Page = page
	return r
}

// Next returns the request for the following page. The last page has no
// successor and returns itself.
func (r LevelsRequest) Next() LevelsRequest {
	if r.Page < math.MaxUint32 {
		r.Page++
	}
	return r
}

func (r LevelsRequest) parts() []string {
	parts := []string{kv("type", r.Type), kv("search", r.Search)}
	parts = append(parts, r.Filters.parts()...)
	return append(parts, kv("page", r.Page))
}

// Fingerprint implements Request.
func (r LevelsRequest) Fingerprint() string {
	return fingerprint("levels", r.parts()...)
}

func (r LevelsRequest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LevelsRequest(%s", r.Type)
	if r.Search != "" {
		fmt.Fprintf(&b, ", %q", r.Search)
	}
	if s := r.Filters.Song; s != nil {
		if s.Custom {
			fmt.Fprintf(&b, ", custom song %d", s.ID)
		} else {
			fmt.Fprintf(&b, ", main song %d", s.ID)
		}
	}
	fmt.Fprintf(&b, ", page %d)", r.Page)
	return b.String()
}

// LevelRequest downloads a single full level.
type LevelRequest struct {
	LevelID uint64
	// Inc counts the download towards the level's download counter.
	Inc   bool
	Extra bool
}

// NewLevelRequest returns a request for the given level.
func NewLevelRequest(levelID uint64) LevelRequest {
	return LevelRequest{LevelID: levelID}
}

// Fingerprint implements Request.
func (r LevelRequest) Fingerprint() string {
	return fingerprint("level", kv("id", r.LevelID), kv("inc", r.Inc), kv("extra", r.Extra))
}

func (r LevelRequest) String() string {
	return fmt.Sprintf("LevelRequest(%d)", r.LevelID)
}
