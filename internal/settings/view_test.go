package settings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/preferences"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "a@b.com"

type fakeProfiles struct {
	mu        sync.Mutex
	profiles  map[string]*profile.Profile
	getErr    error
	result    *profile.UpdateResult
	updateErr error
	updates   []profile.Fields
	block     chan struct{}
}

func newFakeProfiles(p *profile.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]*profile.Profile{}}
	if p != nil {
		f.profiles[p.Email] = p
	}
	return f
}

func (f *fakeProfiles) GetProfile(_ context.Context, email string) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[email]
	if !ok {
		return nil, errors.New("profile not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, email string, fields profile.Fields) (*profile.UpdateResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.result != nil && !f.result.Success {
		return f.result, nil
	}
	p := f.profiles[email]
	p.FirstName = fields.FirstName
	p.LastName = fields.LastName
	p.Phone = fields.Phone
	p.Address = fields.Address
	loc := fields.Location
	p.Location = &loc
	return &profile.UpdateResult{Success: true}, nil
}

type staticSession struct {
	id  session.Identity
	err error
}

func (s staticSession) Current(context.Context) (session.Identity, error) {
	if s.err != nil {
		return session.Identity{}, s.err
	}
	if s.id.Email == "" {
		return session.Identity{}, session.ErrNoIdentity
	}
	return s.id, nil
}

type fixture struct {
	view     *View
	profiles *fakeProfiles
	store    devicestore.Store
	prefs    *preferences.LocationPreference
	logs     *bytes.Buffer
}

func newFixture(t *testing.T, p *profile.Profile, sess session.Provider, opts ...Option) *fixture {
	t.Helper()
	store := devicestore.NewMemoryBackend().ForDevice("dev-1")
	prefs := preferences.NewLocationPreference("dev-1", store, preferences.NewHub())
	profiles := newFakeProfiles(p)
	logs := &bytes.Buffer{}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(logs, nil)))}, opts...)
	return &fixture{
		view:     NewView(sess, profiles, store, prefs, opts...),
		profiles: profiles,
		store:    store,
		prefs:    prefs,
		logs:     logs,
	}
}

func signedIn() session.Provider {
	return staticSession{id: session.Identity{Email: testEmail}}
}

func sampleProfile() *profile.Profile {
	return &profile.Profile{
		Email:         testEmail,
		FirstName:     "Asha",
		LastName:      "Kapoor",
		Phone:         "+91 98765 43210",
		Address:       "12 MG Road",
		LoyaltyPoints: 120,
	}
}

func pngFile(size int) AvatarFile {
	return AvatarFile{
		Name:        "me.png",
		ContentType: "image/png",
		Size:        int64(size),
		Content:     bytes.NewReader(bytes.Repeat([]byte{0x89}, size)),
	}
}

func storeValue(t *testing.T, s devicestore.Store, key string) (string, bool) {
	t.Helper()
	v, ok, err := devicestore.Lookup(context.Background(), s, key)
	require.NoError(t, err)
	return v, ok
}

func TestLoad_PopulatesDraftFromProfile(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())

	require.NoError(t, f.view.Load(context.Background()))

	st := f.view.Snapshot()
	assert.Equal(t, PhaseLoaded, st.Phase)
	assert.False(t, st.Loading)
	assert.True(t, st.HasProfile)
	assert.Equal(t, testEmail, st.Email)
	assert.Equal(t, 120, st.LoyaltyPoints)
	assert.Equal(t, profile.Fields{
		FirstName: "Asha",
		LastName:  "Kapoor",
		Phone:     "+91 98765 43210",
		Address:   "12 MG Road",
		Location:  profile.AllIndia,
	}, st.Draft)
	assert.Equal(t, "AK", st.Initials)
	assert.Empty(t, st.AvatarURL)
}

func TestLoad_LocationPrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("stored preference when profile has none", func(t *testing.T) {
		f := newFixture(t, sampleProfile(), signedIn())
		require.NoError(t, f.store.Set(ctx, devicestore.LocationKey, "Pune"))

		require.NoError(t, f.view.Load(ctx))
		assert.Equal(t, profile.Location("Pune"), f.view.Snapshot().Draft.Location)
	})

	t.Run("profile location wins", func(t *testing.T) {
		p := sampleProfile()
		delhi := profile.Location("Delhi")
		p.Location = &delhi
		f := newFixture(t, p, signedIn())
		require.NoError(t, f.store.Set(ctx, devicestore.LocationKey, "Pune"))

		require.NoError(t, f.view.Load(ctx))
		assert.Equal(t, delhi, f.view.Snapshot().Draft.Location)
	})

	t.Run("unknown stored value falls back to All India", func(t *testing.T) {
		f := newFixture(t, sampleProfile(), signedIn())
		require.NoError(t, f.store.Set(ctx, devicestore.LocationKey, "Gotham"))

		require.NoError(t, f.view.Load(ctx))
		assert.Equal(t, profile.AllIndia, f.view.Snapshot().Draft.Location)
	})
}

func TestLoad_UsesCachedAvatar(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.store.Set(context.Background(), devicestore.AvatarKey(testEmail), "data:image/png;base64,AAAA"))

	require.NoError(t, f.view.Load(context.Background()))

	st := f.view.Snapshot()
	assert.Equal(t, "data:image/png;base64,AAAA", st.AvatarURL)
	assert.False(t, st.AvatarPending)
}

func TestLoad_InitialsFallbackWithoutAvatar(t *testing.T) {
	f := newFixture(t, &profile.Profile{Email: testEmail}, signedIn())

	require.NoError(t, f.view.Load(context.Background()))

	st := f.view.Snapshot()
	assert.Empty(t, st.AvatarURL)
	assert.Equal(t, "LR", st.Initials)
}

func TestLoad_ServiceFailureIsContained(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())
	f.profiles.getErr = errors.New("connection refused")

	err := f.view.Load(context.Background())

	require.NoError(t, err)
	st := f.view.Snapshot()
	assert.Equal(t, PhaseLoadFailed, st.Phase)
	assert.False(t, st.Loading)
	assert.False(t, st.HasProfile)
	assert.Empty(t, f.view.Notifications(), "load failures are not toasted")
	assert.Contains(t, f.logs.String(), "failed to load profile")
}

func TestLoad_WithoutIdentityRequiresAuthentication(t *testing.T) {
	f := newFixture(t, sampleProfile(), staticSession{})

	err := f.view.Load(context.Background())

	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.True(t, IsAuthError(err))
	st := f.view.Snapshot()
	assert.Equal(t, PhaseAuthRequired, st.Phase)
	assert.False(t, st.HasProfile)
	assert.Equal(t, profile.DefaultFields(), st.Draft)
}

func TestLoad_SessionReadFailureIsContained(t *testing.T) {
	f := newFixture(t, sampleProfile(), staticSession{err: errors.New("redis down")})

	require.NoError(t, f.view.Load(context.Background()))
	assert.Equal(t, PhaseLoadFailed, f.view.Snapshot().Phase)
}

func TestChangeAvatar_StagesWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))

	require.NoError(t, f.view.ChangeAvatar(ctx, AvatarFile{
		Name:        "me.png",
		ContentType: "image/png",
		Size:        3,
		Content:     strings.NewReader("abc"),
	}))

	st := f.view.Snapshot()
	assert.Equal(t, "data:image/png;base64,YWJj", st.AvatarURL)
	assert.True(t, st.AvatarPending)
	_, ok := storeValue(t, f.store, devicestore.AvatarKey(testEmail))
	assert.False(t, ok, "device store is untouched until save")

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Avatar selected", notes[0].Title)
	assert.Equal(t, "Click 'Save Changes' to update your profile picture", notes[0].Description)
	assert.Equal(t, VariantDefault, notes[0].Variant)
}

func TestChangeAvatar_AcceptsExactlyTwoMegabytes(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())

	require.NoError(t, f.view.ChangeAvatar(context.Background(), pngFile(MaxAvatarBytes)))
	assert.True(t, f.view.Snapshot().AvatarPending)
}

func TestChangeAvatar_RejectsOversizedFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.store.Set(ctx, devicestore.AvatarKey(testEmail), "data:image/png;base64,OLD="))
	require.NoError(t, f.view.Load(ctx))

	err := f.view.ChangeAvatar(ctx, pngFile(MaxAvatarBytes+1))

	assert.ErrorIs(t, err, ErrAvatarTooLarge)
	assert.Equal(t, "data:image/png;base64,OLD=", f.view.Snapshot().AvatarURL)
	v, _ := storeValue(t, f.store, devicestore.AvatarKey(testEmail))
	assert.Equal(t, "data:image/png;base64,OLD=", v)

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Image size should be less than 2MB", notes[0].Description)
	assert.Equal(t, VariantDestructive, notes[0].Variant)
}

func TestChangeAvatar_RejectsUnderstatedSize(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())
	file := pngFile(MaxAvatarBytes + 10)
	file.Size = 10

	err := f.view.ChangeAvatar(context.Background(), file)

	assert.ErrorIs(t, err, ErrAvatarTooLarge)
	assert.Empty(t, f.view.Snapshot().AvatarURL)
}

func TestChangeAvatar_RejectsNonImageRegardlessOfSize(t *testing.T) {
	for _, size := range []int{1, 1024, MaxAvatarBytes} {
		f := newFixture(t, sampleProfile(), signedIn())
		file := pngFile(size)
		file.ContentType = "application/pdf"

		err := f.view.ChangeAvatar(context.Background(), file)

		assert.ErrorIs(t, err, ErrAvatarNotImage)
		assert.Empty(t, f.view.Snapshot().AvatarURL)
		notes := f.view.Notifications()
		require.Len(t, notes, 1)
		assert.Equal(t, "Please select an image file", notes[0].Description)
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestChangeAvatar_ReadFailure(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())

	err := f.view.ChangeAvatar(context.Background(), AvatarFile{Name: "x.png", ContentType: "image/png", Size: 5, Content: brokenReader{}})

	assert.ErrorIs(t, err, ErrAvatarUnreadable)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Empty(t, f.view.Snapshot().AvatarURL)

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Could not read the selected image", notes[0].Description)
	assert.Equal(t, VariantDestructive, notes[0].Variant)
}

func TestChangeAvatar_MissingContent(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())

	err := f.view.ChangeAvatar(context.Background(), AvatarFile{Name: "x.png", ContentType: "image/png", Size: 5})

	assert.ErrorIs(t, err, ErrAvatarUnreadable)
	assert.Empty(t, f.view.Snapshot().AvatarURL)
	require.Len(t, f.view.Notifications(), 1)
}

func TestSave_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))

	edited := profile.Fields{
		FirstName: "Ravi",
		LastName:  "Iyer",
		Phone:     "+91 90000 00000",
		Address:   "7 Marine Drive",
		Location:  "Mumbai",
	}
	require.NoError(t, f.view.UpdateDraft(edited))
	require.NoError(t, f.view.Save(ctx))

	st := f.view.Snapshot()
	assert.Equal(t, SaveDone, st.SavePhase)
	assert.False(t, st.Saving)
	assert.Equal(t, PhaseLoaded, st.Phase)
	assert.Equal(t, edited, st.Draft)

	// a fresh view on the same device reads back the same values
	other := NewView(signedIn(), f.profiles, f.store, f.prefs)
	require.NoError(t, other.Load(ctx))
	assert.Equal(t, edited, other.Snapshot().Draft)
}

func TestSave_SuccessPersistsLocationAndAvatar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))
	_, ok := storeValue(t, f.store, devicestore.LocationKey)
	require.False(t, ok)

	updates, cancel := f.prefs.Subscribe()
	defer cancel()

	draft := f.view.Snapshot().Draft
	draft.Location = "Kolkata"
	require.NoError(t, f.view.UpdateDraft(draft))
	require.NoError(t, f.view.ChangeAvatar(ctx, AvatarFile{Name: "a.gif", ContentType: "image/gif", Size: 2, Content: strings.NewReader("hi")}))
	f.view.Notifications()

	require.NoError(t, f.view.Save(ctx))

	loc, ok := storeValue(t, f.store, devicestore.LocationKey)
	require.True(t, ok)
	assert.Equal(t, "Kolkata", loc)

	avatar, ok := storeValue(t, f.store, devicestore.AvatarKey(testEmail))
	require.True(t, ok)
	assert.Equal(t, "data:image/gif;base64,aGk=", avatar)
	assert.False(t, f.view.Snapshot().AvatarPending)

	select {
	case got := <-updates:
		assert.Equal(t, profile.Location("Kolkata"), got)
	case <-time.After(time.Second):
		t.Fatal("location subscribers were not notified")
	}

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Success!", notes[0].Title)
	assert.Equal(t, "Your profile has been successfully updated.", notes[0].Description)
}

func TestSave_BusinessFailureShowsServiceMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))

	updates, cancel := f.prefs.Subscribe()
	defer cancel()

	draft := f.view.Snapshot().Draft
	draft.Phone = "not-a-phone"
	require.NoError(t, f.view.UpdateDraft(draft))
	f.profiles.result = &profile.UpdateResult{Success: false, Message: "Phone invalid"}

	require.NoError(t, f.view.Save(ctx))

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Phone invalid", notes[0].Description)
	assert.Equal(t, VariantDestructive, notes[0].Variant)

	st := f.view.Snapshot()
	assert.Equal(t, draft, st.Draft, "draft is kept for correction")
	assert.Equal(t, SaveFailed, st.SavePhase)
	_, ok := storeValue(t, f.store, devicestore.LocationKey)
	assert.False(t, ok)
	select {
	case loc := <-updates:
		t.Fatalf("unexpected location change %q", loc)
	default:
	}
}

func TestSave_BusinessFailureWithoutMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))
	f.profiles.result = &profile.UpdateResult{Success: false}

	require.NoError(t, f.view.Save(ctx))

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Failed to update profile", notes[0].Description)
}

func TestSave_TransportFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))
	require.NoError(t, f.view.ChangeAvatar(ctx, pngFile(8)))
	f.view.Notifications()
	f.profiles.updateErr = errors.New("dial tcp: i/o timeout")

	require.NoError(t, f.view.Save(ctx))

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Failed to update profile. Please try again.", notes[0].Description)
	assert.Contains(t, f.logs.String(), "failed to save profile")

	st := f.view.Snapshot()
	assert.Equal(t, SaveFailed, st.SavePhase)
	assert.True(t, st.AvatarPending, "staged avatar survives a failed save")
	_, ok := storeValue(t, f.store, devicestore.AvatarKey(testEmail))
	assert.False(t, ok)
}

func TestSave_WithoutIdentity(t *testing.T) {
	f := newFixture(t, sampleProfile(), staticSession{})

	err := f.view.Save(context.Background())

	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Empty(t, f.profiles.updates)
	assert.Equal(t, SaveIdle, f.view.Snapshot().SavePhase)
}

func TestSave_RejectsConcurrentSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))
	f.profiles.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.view.Save(ctx) }()

	require.Eventually(t, func() bool { return f.view.Snapshot().Saving }, time.Second, 5*time.Millisecond)
	assert.Equal(t, SaveActive, f.view.Snapshot().SavePhase)
	assert.ErrorIs(t, f.view.Save(ctx), ErrSaveInProgress)

	close(f.profiles.block)
	require.NoError(t, <-done)
	assert.False(t, f.view.Snapshot().Saving)
	assert.Len(t, f.profiles.updates, 1)
}

func TestCancel_RestoresLoadedValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(ctx))
	loaded := f.view.Snapshot().Draft

	require.NoError(t, f.view.UpdateDraft(profile.Fields{FirstName: "Changed", Location: "Jaipur"}))
	require.NoError(t, f.view.ChangeAvatar(ctx, pngFile(16)))

	require.NoError(t, f.view.Cancel(ctx))

	st := f.view.Snapshot()
	assert.Equal(t, loaded, st.Draft)
	assert.Empty(t, st.AvatarURL)
	assert.False(t, st.AvatarPending)
	assert.Empty(t, f.profiles.updates)
}

func TestUpdateDraft_RejectsUnknownLocation(t *testing.T) {
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.view.Load(context.Background()))
	before := f.view.Snapshot().Draft

	err := f.view.UpdateDraft(profile.Fields{FirstName: "X", Location: "Springfield"})

	assert.ErrorIs(t, err, ErrInvalidLocation)
	assert.Equal(t, before, f.view.Snapshot().Draft)
}

func TestRemoveAvatar_Immediate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn())
	require.NoError(t, f.store.Set(ctx, devicestore.AvatarKey(testEmail), "data:image/png;base64,AAAA"))
	require.NoError(t, f.view.Load(ctx))

	require.NoError(t, f.view.RemoveAvatar(ctx))

	assert.Empty(t, f.view.Snapshot().AvatarURL)
	_, ok := storeValue(t, f.store, devicestore.AvatarKey(testEmail))
	assert.False(t, ok, "removal does not wait for save")
	assert.Empty(t, f.profiles.updates)
}

func TestRemoveAvatar_OnSavePolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn(), WithRemovalPolicy(RemoveOnSave))
	require.NoError(t, f.store.Set(ctx, devicestore.AvatarKey(testEmail), "data:image/png;base64,AAAA"))
	require.NoError(t, f.view.Load(ctx))

	require.NoError(t, f.view.RemoveAvatar(ctx))

	assert.Empty(t, f.view.Snapshot().AvatarURL)
	_, ok := storeValue(t, f.store, devicestore.AvatarKey(testEmail))
	assert.True(t, ok, "removal is staged")

	require.NoError(t, f.view.Save(ctx))
	_, ok = storeValue(t, f.store, devicestore.AvatarKey(testEmail))
	assert.False(t, ok)
	assert.Empty(t, f.view.Snapshot().AvatarURL)
}

func TestRemoveAvatar_OnSavePolicyCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleProfile(), signedIn(), WithRemovalPolicy(RemoveOnSave))
	require.NoError(t, f.store.Set(ctx, devicestore.AvatarKey(testEmail), "data:image/png;base64,AAAA"))
	require.NoError(t, f.view.Load(ctx))

	require.NoError(t, f.view.RemoveAvatar(ctx))
	require.NoError(t, f.view.Cancel(ctx))

	assert.Equal(t, "data:image/png;base64,AAAA", f.view.Snapshot().AvatarURL)
}

func TestParseRemovalPolicy(t *testing.T) {
	p, err := ParseRemovalPolicy("immediate")
	require.NoError(t, err)
	assert.Equal(t, RemoveImmediately, p)

	p, err = ParseRemovalPolicy("ON-SAVE")
	require.NoError(t, err)
	assert.Equal(t, RemoveOnSave, p)

	_, err = ParseRemovalPolicy("later")
	assert.Error(t, err)
}
