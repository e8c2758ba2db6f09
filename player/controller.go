// Package player holds one device's playback state and drives an audio
// Output. It is the single controller shared by every layout variant;
// optional affordances are switched by Capabilities instead of
// maintaining parallel copies.
package player

import (
	"math/rand"
	"sync"
	"time"

	"LanFM/localstore"
	"LanFM/logger"
	"LanFM/model"
)

// RepeatMode controls what happens when the queue runs out or a track ends.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// playCountThreshold is the cumulative listening time after which a play
// is counted, unless natural track end counts it first.
const playCountThreshold = 30.0 // seconds

// restartAfter is how far into a track Prev restarts it instead of
// moving back. UX heuristic, not a correctness rule.
const restartAfter = 3.0 // seconds

// Capabilities describes which optional affordances a layout variant has.
type Capabilities struct {
	RestartOnPrev bool // Prev restarts the current track after 3s
	DeviceRoster  bool // roster view available
	Badges        bool // most-played badge rendered
}

// Hooks receive playback transitions. Nil hooks are skipped. They fire
// outside the controller lock and must not call back into the controller.
type Hooks struct {
	// OnStatus fires on every play/pause transition with the selected
	// song (nil when none) and the new playing state.
	OnStatus func(song *model.Song, isPlaying bool)
	// OnPlayCounted fires exactly once per track load, whichever of the
	// 30-second threshold or natural end comes first.
	OnPlayCounted func(songID string)
}

// persistedState is the musicPlayerState document.
type persistedState struct {
	Volume      float64    `json:"volume"`
	RepeatMode  RepeatMode `json:"repeatMode"`
	IsShuffled  bool       `json:"isShuffled"`
	Favorites   []string   `json:"favorites"`
	CurrentSong string     `json:"currentSong,omitempty"`
}

// Controller maintains the queue, selection and playback flags.
// Invariant: currentIndex is -1 or a valid index into queue.
type Controller struct {
	mu sync.Mutex

	out   Output
	caps  Capabilities
	hooks Hooks
	local *localstore.Store
	rng   *rand.Rand

	catalog      []model.Song
	queue        []model.Song
	currentIndex int
	isPlaying    bool
	isShuffled   bool
	repeatMode   RepeatMode
	volume       float64
	favorites    map[string]struct{}
	playCounts   map[string]int64

	counted bool // play already counted for the current load
}

// NewController creates a controller over the given catalog and restores
// any locally persisted state.
func NewController(catalog []model.Song, out Output, caps Capabilities, hooks Hooks, local *localstore.Store) *Controller {
	c := &Controller{
		out:          out,
		caps:         caps,
		hooks:        hooks,
		local:        local,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		catalog:      catalog,
		queue:        append([]model.Song(nil), catalog...),
		currentIndex: -1,
		repeatMode:   RepeatOff,
		volume:       0.8,
		favorites:    make(map[string]struct{}),
		playCounts:   make(map[string]int64),
	}
	c.restore()
	return c
}

// restore rebuilds local state from the persisted documents.
func (c *Controller) restore() {
	if c.local == nil {
		return
	}

	var volume float64
	if c.local.Get(localstore.KeyVolume, &volume) {
		c.volume = clampVolume(volume)
	}
	c.out.SetVolume(c.volume)

	c.local.Get(localstore.KeyPlayCounts, &c.playCounts)
	if c.playCounts == nil {
		c.playCounts = make(map[string]int64)
	}

	var saved persistedState
	if !c.local.Get(localstore.KeyPlayerState, &saved) {
		return
	}
	if saved.RepeatMode != "" {
		c.repeatMode = saved.RepeatMode
	}
	c.isShuffled = saved.IsShuffled
	for _, id := range saved.Favorites {
		c.favorites[id] = struct{}{}
	}

	if saved.CurrentSong == "" {
		return
	}
	// Re-select the saved song when it still exists; otherwise leave the
	// selection unset.
	if idx := indexByID(c.queue, saved.CurrentSong); idx != -1 {
		c.currentIndex = idx
		if err := c.out.Load(c.queue[idx].URL); err != nil {
			logger.Warn("restore load failed", logger.String("song", saved.CurrentSong), logger.ErrorField(err))
		}
	}
}

// Play selects and starts the track at index. Out-of-range indexes are
// ignored. On playback failure the controller stays stopped; no retry.
func (c *Controller) Play(index int) {
	c.mu.Lock()
	if index < 0 || index >= len(c.queue) {
		c.mu.Unlock()
		return
	}

	c.currentIndex = index
	song := c.queue[index]
	c.counted = false

	if err := c.out.Load(song.URL); err != nil {
		c.isPlaying = false
		c.mu.Unlock()
		logger.Error("track load failed", logger.String("song", song.ID), logger.ErrorField(err))
		return
	}
	if err := c.out.Play(); err != nil {
		c.isPlaying = false
		c.mu.Unlock()
		logger.Error("playback failed", logger.String("song", song.ID), logger.ErrorField(err))
		return
	}

	c.isPlaying = true
	c.persistLocked()
	c.mu.Unlock()

	c.notifyStatus(&song, true)
}

// TogglePlayPause starts track 0 when nothing is selected, otherwise
// flips the pause state.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	if c.currentIndex == -1 {
		hasSongs := len(c.queue) > 0
		c.mu.Unlock()
		if hasSongs {
			c.Play(0)
		}
		return
	}

	song := c.queue[c.currentIndex]
	if c.isPlaying {
		c.out.Pause()
		c.isPlaying = false
		c.mu.Unlock()
		c.notifyStatus(&song, false)
		return
	}

	if err := c.out.Play(); err != nil {
		c.mu.Unlock()
		logger.Error("playback failed", logger.String("song", song.ID), logger.ErrorField(err))
		return
	}
	c.isPlaying = true
	c.mu.Unlock()
	c.notifyStatus(&song, true)
}

// Next advances through the queue. At the end it wraps only under
// repeat-all, otherwise playback stops with the selection unchanged.
func (c *Controller) Next() {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}

	next := c.currentIndex + 1
	if next >= len(c.queue) {
		if c.repeatMode == RepeatAll {
			next = 0
		} else {
			c.out.Pause()
			c.isPlaying = false
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()
	c.Play(next)
}

// Prev retreats through the queue, clamping at the start. With the
// restart capability it restarts the current track instead when more
// than three seconds have elapsed.
func (c *Controller) Prev() {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}

	if c.caps.RestartOnPrev && c.currentIndex >= 0 && c.out.Position() > restartAfter {
		c.out.Seek(0)
		c.mu.Unlock()
		return
	}

	prev := c.currentIndex - 1
	if prev < 0 {
		if c.repeatMode == RepeatAll {
			prev = len(c.queue) - 1
		} else {
			prev = 0
		}
	}
	c.mu.Unlock()
	c.Play(prev)
}

// ToggleShuffle swaps between catalog order and a fresh Fisher-Yates
// permutation of the full catalog, keeping the current song selected when
// it is still present.
func (c *Controller) ToggleShuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isShuffled = !c.isShuffled

	var currentID string
	if c.currentIndex >= 0 {
		currentID = c.queue[c.currentIndex].ID
	}

	c.queue = append([]model.Song(nil), c.catalog...)
	if c.isShuffled {
		for i := len(c.queue) - 1; i > 0; i-- {
			j := c.rng.Intn(i + 1)
			c.queue[i], c.queue[j] = c.queue[j], c.queue[i]
		}
	}

	if currentID != "" {
		c.currentIndex = indexByID(c.queue, currentID)
	}
	c.persistLocked()
}

// CycleRepeat steps off -> all -> one -> off.
func (c *Controller) CycleRepeat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.repeatMode {
	case RepeatOff:
		c.repeatMode = RepeatAll
	case RepeatAll:
		c.repeatMode = RepeatOne
	default:
		c.repeatMode = RepeatOff
	}
	c.persistLocked()
}

// SetRepeat sets an explicit repeat mode.
func (c *Controller) SetRepeat(mode RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeatMode = mode
	c.persistLocked()
}

// SetVolume applies and persists a volume clamped to [0,1].
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = clampVolume(v)
	c.out.SetVolume(c.volume)
	if c.local != nil {
		if err := c.local.Set(localstore.KeyVolume, c.volume); err != nil {
			logger.Warn("volume persist failed", logger.ErrorField(err))
		}
	}
	c.mu.Unlock()
}

// ToggleFavorite flips a song's favorite flag.
func (c *Controller) ToggleFavorite(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.favorites[id]; ok {
		delete(c.favorites, id)
	} else {
		c.favorites[id] = struct{}{}
	}
	c.persistLocked()
}

// Tick samples the output position and applies the 30-second play count
// rule. The agent drives it from its progress timer.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.counted || !c.isPlaying || c.currentIndex < 0 {
		c.mu.Unlock()
		return
	}
	if c.out.Position() < playCountThreshold {
		c.mu.Unlock()
		return
	}
	id := c.queue[c.currentIndex].ID
	c.markCountedLocked(id)
	c.mu.Unlock()

	c.notifyCounted(id)
}

// OnTrackEnd handles natural end of the current track: it counts the
// play if the threshold never fired, reports the stop, then repeats or
// advances.
func (c *Controller) OnTrackEnd() {
	c.mu.Lock()
	if c.currentIndex < 0 {
		c.mu.Unlock()
		return
	}
	song := c.queue[c.currentIndex]

	var countedNow bool
	if !c.counted {
		c.markCountedLocked(song.ID)
		countedNow = true
	}

	repeatOne := c.repeatMode == RepeatOne
	resumed := false
	if repeatOne {
		c.out.Seek(0)
		if err := c.out.Play(); err != nil {
			c.isPlaying = false
			logger.Error("repeat-one restart failed", logger.String("song", song.ID), logger.ErrorField(err))
		} else {
			// A repeat is a new load for counting purposes.
			c.counted = false
			resumed = true
		}
	}
	c.mu.Unlock()

	if countedNow {
		c.notifyCounted(song.ID)
	}
	// A successful repeat-one restart keeps the track playing; the
	// reported status must match or every heartbeat repeats a stale pause.
	c.notifyStatus(&song, resumed)

	if !repeatOne {
		c.Next()
	}
}

// markCountedLocked records one local play. Callers hold the lock and
// fire the hook after releasing it.
func (c *Controller) markCountedLocked(id string) {
	c.counted = true
	c.playCounts[id]++
	if c.local != nil {
		if err := c.local.Set(localstore.KeyPlayCounts, c.playCounts); err != nil {
			logger.Warn("play counts persist failed", logger.ErrorField(err))
		}
	}
}

// persistLocked writes the musicPlayerState document. Callers hold the lock.
func (c *Controller) persistLocked() {
	if c.local == nil {
		return
	}

	state := persistedState{
		Volume:     c.volume,
		RepeatMode: c.repeatMode,
		IsShuffled: c.isShuffled,
		Favorites:  make([]string, 0, len(c.favorites)),
	}
	for id := range c.favorites {
		state.Favorites = append(state.Favorites, id)
	}
	if c.currentIndex != -1 {
		state.CurrentSong = c.queue[c.currentIndex].ID
	}
	if err := c.local.Set(localstore.KeyPlayerState, state); err != nil {
		logger.Warn("player state persist failed", logger.ErrorField(err))
	}
}

func (c *Controller) notifyStatus(song *model.Song, isPlaying bool) {
	if c.hooks.OnStatus != nil {
		c.hooks.OnStatus(song, isPlaying)
	}
}

func (c *Controller) notifyCounted(id string) {
	if c.hooks.OnPlayCounted != nil {
		c.hooks.OnPlayCounted(id)
	}
}

// Current returns the selected song, if any.
func (c *Controller) Current() (model.Song, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentIndex < 0 {
		return model.Song{}, false
	}
	return c.queue[c.currentIndex], true
}

// CurrentIndex returns the selection index, -1 when none.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentIndex
}

// IsPlaying reports the playing flag.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPlaying
}

// Repeat returns the repeat mode.
func (c *Controller) Repeat() RepeatMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repeatMode
}

// IsShuffled reports whether the queue is a shuffled permutation.
func (c *Controller) IsShuffled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isShuffled
}

// Volume returns the current volume.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Queue returns a copy of the current play order.
func (c *Controller) Queue() []model.Song {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Song(nil), c.queue...)
}

// Favorites returns the favorited song IDs.
func (c *Controller) Favorites() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.favorites))
	for id := range c.favorites {
		out = append(out, id)
	}
	return out
}

// PlayCount returns the local play count mirror for one song.
func (c *Controller) PlayCount(id string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playCounts[id]
}

// MostPlayed returns the locally most played song ID and its count, or
// ("", 0) when nothing has been counted. Badge data.
func (c *Controller) MostPlayed() (string, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var topID string
	var topCount int64
	for id, n := range c.playCounts {
		if n > topCount {
			topID, topCount = id, n
		}
	}
	return topID, topCount
}

func indexByID(songs []model.Song, id string) int {
	for i, s := range songs {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
