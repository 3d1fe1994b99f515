// Package settings implements the profile settings view model: loading the
// signed-in user's profile into an editable draft, staging an avatar image,
// saving through the Profile Service and discarding edits.
package settings

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/preferences"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/session"
)

// MaxAvatarBytes is the largest accepted avatar file, before encoding.
const MaxAvatarBytes = 2 * 1024 * 1024

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrSaveInProgress         = errors.New("a save is already in progress")
	ErrAvatarTooLarge         = errors.New("avatar exceeds 2MB")
	ErrAvatarNotImage         = errors.New("avatar is not an image")
	ErrAvatarUnreadable       = errors.New("avatar could not be read")
	ErrInvalidLocation        = errors.New("invalid location")
)

// ProfileService is the remote owner of profile records.
type ProfileService interface {
	GetProfile(ctx context.Context, email string) (*profile.Profile, error)
	UpdateProfile(ctx context.Context, email string, fields profile.Fields) (*profile.UpdateResult, error)
}

// RemovalPolicy decides when removing an avatar reaches the device store.
type RemovalPolicy int

const (
	// RemoveImmediately deletes the cached avatar as soon as it is removed.
	RemoveImmediately RemovalPolicy = iota
	// RemoveOnSave stages the removal like a selection and applies it on Save.
	RemoveOnSave
)

// ParseRemovalPolicy accepts "immediate" and "on-save".
func ParseRemovalPolicy(s string) (RemovalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "immediate":
		return RemoveImmediately, nil
	case "on-save":
		return RemoveOnSave, nil
	}
	return RemoveImmediately, fmt.Errorf("unknown avatar removal policy %q", s)
}

// Phase is the lifecycle state of the view.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseAuthRequired Phase = "auth-required"
	PhaseLoading      Phase = "loading"
	PhaseLoaded       Phase = "loaded"
	PhaseLoadFailed   Phase = "load-failed"
)

// SavePhase is the lifecycle state of the save action.
type SavePhase string

const (
	SaveIdle   SavePhase = "idle"
	SaveActive SavePhase = "saving"
	SaveDone   SavePhase = "saved"
	SaveFailed SavePhase = "save-failed"
)

// AvatarFile is a user-selected image.
type AvatarFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// State is a point-in-time copy of the view for rendering.
type State struct {
	Phase         Phase
	SavePhase     SavePhase
	Loading       bool
	Saving        bool
	HasProfile    bool
	Email         string
	LoyaltyPoints int
	Draft         profile.Fields
	AvatarURL     string
	AvatarPending bool
	Initials      string
}

// View is the profile settings view model of one device.
type View struct {
	sessions  session.Provider
	profiles  ProfileService
	store     devicestore.Store
	locations *preferences.LocationPreference
	policy    RemovalPolicy
	logger    *slog.Logger

	mu             sync.Mutex
	phase          Phase
	savePhase      SavePhase
	loading        bool
	saving         bool
	profile        *profile.Profile
	draft          profile.Fields
	avatarURL      string
	avatarPending  bool
	pendingRemoval bool
	notes          []Notification
}

type Option func(*View)

func WithRemovalPolicy(p RemovalPolicy) Option {
	return func(v *View) { v.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *View) { v.logger = l }
}

func NewView(
	sessions session.Provider,
	profiles ProfileService,
	store devicestore.Store,
	locations *preferences.LocationPreference,
	opts ...Option,
) *View {
	v := &View{
		sessions:  sessions,
		profiles:  profiles,
		store:     store,
		locations: locations,
		logger:    slog.Default(),
		phase:     PhaseIdle,
		savePhase: SaveIdle,
		draft:     profile.DefaultFields(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// identity resolves the signed-in user. ok is false when nobody is signed in;
// err is set only when the session could not be read at all.
func (v *View) identity(ctx context.Context) (session.Identity, bool, error) {
	id, err := v.sessions.Current(ctx)
	if errors.Is(err, session.ErrNoIdentity) {
		return session.Identity{}, false, nil
	}
	if err != nil {
		return session.Identity{}, false, err
	}
	return id, true, nil
}

// Load fetches the signed-in user's profile and rebuilds the draft and the
// displayed avatar from it. Profile Service failures are logged and leave the
// view in PhaseLoadFailed; only a missing identity is returned as an error.
func (v *View) Load(ctx context.Context) error {
	id, ok, err := v.identity(ctx)
	if err != nil {
		v.logger.Error("failed to resolve identity", "action", "profile.load", "error", err)
		v.finishLoad(PhaseLoadFailed)
		return nil
	}
	if !ok {
		v.mu.Lock()
		v.phase = PhaseAuthRequired
		v.profile = nil
		v.loading = false
		v.mu.Unlock()
		return ErrAuthenticationRequired
	}

	v.mu.Lock()
	v.phase = PhaseLoading
	v.loading = true
	v.mu.Unlock()

	p, err := v.profiles.GetProfile(ctx, id.Email)
	if err != nil {
		v.logger.Error("failed to load profile", "action", "profile.load", "email", id.Email, "error", err)
		v.finishLoad(PhaseLoadFailed)
		return nil
	}

	fallback := profile.AllIndia
	if stored, ok, err := v.locations.Get(ctx); err != nil {
		v.logger.Warn("failed to read location preference", "email", id.Email, "error", err)
	} else if ok {
		fallback = stored
	}

	avatar, _, err := devicestore.Lookup(ctx, v.store, devicestore.AvatarKey(id.Email))
	if err != nil {
		v.logger.Warn("failed to read cached avatar", "email", id.Email, "error", err)
		avatar = ""
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.profile = p
	v.draft = p.Fields(fallback)
	v.avatarURL = avatar
	v.avatarPending = false
	v.pendingRemoval = false
	v.phase = PhaseLoaded
	v.loading = false
	return nil
}

func (v *View) finishLoad(phase Phase) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.profile = nil
	v.phase = phase
	v.loading = false
}

// UpdateDraft replaces the draft with fields. Nothing is persisted.
func (v *View) UpdateDraft(fields profile.Fields) error {
	if !fields.Location.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLocation, string(fields.Location))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = fields
	return nil
}

// ChangeAvatar validates and encodes file and stages it as the displayed
// avatar. The device store is only written on Save.
func (v *View) ChangeAvatar(ctx context.Context, file AvatarFile) error {
	if file.Size > MaxAvatarBytes {
		v.notify(errorNote("Image size should be less than 2MB"))
		return ErrAvatarTooLarge
	}
	if !strings.HasPrefix(file.ContentType, "image/") {
		v.notify(errorNote("Please select an image file"))
		return ErrAvatarNotImage
	}

	if file.Content == nil {
		v.notify(errorNote("Could not read the selected image"))
		return fmt.Errorf("%w: %s has no content", ErrAvatarUnreadable, file.Name)
	}
	data, err := io.ReadAll(io.LimitReader(file.Content, MaxAvatarBytes+1))
	if err != nil {
		v.logger.Error("failed to read avatar", "action", "profile.avatar", "file", file.Name, "error", err)
		v.notify(errorNote("Could not read the selected image"))
		return fmt.Errorf("%w: %w", ErrAvatarUnreadable, err)
	}
	if len(data) > MaxAvatarBytes {
		v.notify(errorNote("Image size should be less than 2MB"))
		return ErrAvatarTooLarge
	}

	url := "data:" + file.ContentType + ";base64," + base64.StdEncoding.EncodeToString(data)

	v.mu.Lock()
	v.avatarURL = url
	v.avatarPending = true
	v.pendingRemoval = false
	v.mu.Unlock()

	v.notify(Notification{
		Title:       "Avatar selected",
		Description: "Click 'Save Changes' to update your profile picture",
	})
	return nil
}

// RemoveAvatar clears the displayed avatar. Under RemoveImmediately the
// cached copy is deleted at once; under RemoveOnSave the delete waits for a
// successful Save.
func (v *View) RemoveAvatar(ctx context.Context) error {
	v.mu.Lock()
	v.avatarURL = ""
	v.avatarPending = false
	v.pendingRemoval = v.policy == RemoveOnSave
	v.mu.Unlock()

	if v.policy == RemoveOnSave {
		return nil
	}

	id, ok, err := v.identity(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthenticationRequired
	}
	if err := v.store.Delete(ctx, devicestore.AvatarKey(id.Email)); err != nil {
		v.logger.Error("failed to delete cached avatar", "action", "profile.avatar.remove", "email", id.Email, "error", err)
		return err
	}
	return nil
}

// Save submits the draft. On success the staged avatar and the location
// preference are written to the device, subscribers of the preference are
// notified, and the view reloads from source.
func (v *View) Save(ctx context.Context) error {
	v.mu.Lock()
	if v.saving {
		v.mu.Unlock()
		return ErrSaveInProgress
	}
	v.saving = true
	v.savePhase = SaveActive
	draft := v.draft
	avatar := v.avatarURL
	removal := v.pendingRemoval
	v.mu.Unlock()

	outcome := SaveFailed
	defer func() {
		v.mu.Lock()
		v.saving = false
		v.savePhase = outcome
		v.mu.Unlock()
	}()

	id, ok, err := v.identity(ctx)
	if err != nil {
		v.logger.Error("failed to resolve identity", "action", "profile.save", "error", err)
		v.notify(errorNote(genericSaveError))
		return nil
	}
	if !ok {
		outcome = SaveIdle
		return ErrAuthenticationRequired
	}

	res, err := v.profiles.UpdateProfile(ctx, id.Email, draft)
	if err != nil {
		v.logger.Error("failed to save profile", "action", "profile.save", "email", id.Email, "error", err)
		v.notify(errorNote(genericSaveError))
		return nil
	}
	if res == nil || !res.Success {
		msg := "Failed to update profile"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		v.notify(errorNote(msg))
		return nil
	}

	key := devicestore.AvatarKey(id.Email)
	switch {
	case avatar != "":
		if err := v.store.Set(ctx, key, avatar); err != nil {
			v.logger.Error("failed to cache avatar", "action", "profile.save", "email", id.Email, "error", err)
		}
	case removal:
		if err := v.store.Delete(ctx, key); err != nil {
			v.logger.Error("failed to delete cached avatar", "action", "profile.save", "email", id.Email, "error", err)
		}
	}
	if err := v.locations.Set(ctx, draft.Location); err != nil {
		v.logger.Error("failed to store location preference", "action", "profile.save", "email", id.Email, "error", err)
	}

	outcome = SaveDone
	v.notify(Notification{
		Title:       "Success!",
		Description: "Your profile has been successfully updated.",
	})

	return v.Load(ctx)
}

// Cancel discards unsaved edits by reloading from source.
func (v *View) Cancel(ctx context.Context) error {
	return v.Load(ctx)
}

func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := State{
		Phase:         v.phase,
		SavePhase:     v.savePhase,
		Loading:       v.loading,
		Saving:        v.saving,
		HasProfile:    v.profile != nil,
		Draft:         v.draft,
		AvatarURL:     v.avatarURL,
		AvatarPending: v.avatarPending,
		Initials:      profile.Initials(v.draft.FirstName, v.draft.LastName),
	}
	if v.profile != nil {
		s.Email = v.profile.Email
		s.LoyaltyPoints = v.profile.LoyaltyPoints
	}
	return s
}
