package service

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/juju/collections/set"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"instafeed/internal/apperr"
	"instafeed/internal/events"
	"instafeed/internal/models"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	nextID   int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[string]*models.Account{}}
}

func (m *memAccounts) CreateAccount(ctx context.Context, account *models.Account, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return apperr.Conflict("email %s already exists", account.Email)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	m.nextID++
	account.AccountID = "acc-" + strconv.Itoa(m.nextID)
	account.PasswordHash = string(hash)
	stored := *account
	m.accounts[account.AccountID] = &stored
	return nil
}

func (m *memAccounts) GetAccountByID(ctx context.Context, accountID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, apperr.NotFound("account %s not found", accountID)
	}
	copied := *a
	return &copied, nil
}

func (m *memAccounts) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("account not found")
}

func (m *memAccounts) VerifyPassword(ctx context.Context, email, password string) (*models.Account, error) {
	a, err := m.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Auth("invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Auth("invalid email or password")
	}
	return a, nil
}

func (m *memAccounts) UpdateRefreshToken(ctx context.Context, accountID, refreshToken string, expiryTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return apperr.NotFound("account %s not found", accountID)
	}
	a.RefreshToken = refreshToken
	a.RefreshTokenExpiryTime = expiryTime
	return nil
}

func (m *memAccounts) GetAccountByRefreshToken(ctx context.Context, refreshToken string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if refreshToken == "" {
		return nil, apperr.Auth("invalid refresh token")
	}
	for _, a := range m.accounts {
		if a.RefreshToken == refreshToken {
			copied := *a
			return &copied, nil
		}
	}
	return nil, apperr.Auth("invalid refresh token")
}

type memProfiles struct {
	mu        sync.Mutex
	profiles  map[string]*models.UserProfile
	upsertErr error
}

func newMemProfiles(profiles ...*models.UserProfile) *memProfiles {
	m := &memProfiles{profiles: map[string]*models.UserProfile{}}
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return m
}

func copyProfile(p *models.UserProfile) *models.UserProfile {
	copied := *p
	copied.FollowingIDs = append([]string{}, p.FollowingIDs...)
	return &copied
}

func (m *memProfiles) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, apperr.NotFound("profile %s not found", userID)
	}
	return copyProfile(p), nil
}

func (m *memProfiles) GetByHandle(ctx context.Context, handle string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Handle == handle {
			return copyProfile(p), nil
		}
	}
	return nil, apperr.NotFound("profile @%s not found", handle)
}

func (m *memProfiles) Create(ctx context.Context, profile *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profile.UserID]; ok {
		return apperr.Conflict("profile %s already exists", profile.UserID)
	}
	m.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

func (m *memProfiles) Upsert(ctx context.Context, userID string, fields models.ProfileFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		p = &models.UserProfile{UserID: userID, FollowingIDs: []string{}}
		m.profiles[userID] = p
	}
	if fields.DisplayName != nil {
		p.DisplayName = *fields.DisplayName
	}
	if fields.Handle != nil {
		p.Handle = *fields.Handle
	}
	if fields.Bio != nil {
		p.Bio = *fields.Bio
	}
	if fields.ImageURL != nil {
		p.ImageURL = *fields.ImageURL
	}
	return nil
}

func (m *memProfiles) AddFollowing(ctx context.Context, userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return apperr.NotFound("profile %s not found", userID)
	}
	if !set.NewStrings(p.FollowingIDs...).Contains(targetID) {
		p.FollowingIDs = append(p.FollowingIDs, targetID)
	}
	return nil
}

func (m *memProfiles) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return apperr.NotFound("profile %s not found", userID)
	}
	kept := []string{}
	for _, id := range p.FollowingIDs {
		if id != targetID {
			kept = append(kept, id)
		}
	}
	p.FollowingIDs = kept
	return nil
}

// memPosts keeps posts in insertion order. readDelay is slept after every
// GetByID to widen read-then-write windows.
type memPosts struct {
	mu        sync.Mutex
	posts     []*models.Post
	readDelay time.Duration
	failWith  error

	authorQueries [][]string
}

func newMemPosts(posts ...*models.Post) *memPosts {
	return &memPosts{posts: posts}
}

func copyPost(p *models.Post) *models.Post {
	copied := *p
	copied.LikerIDs = append([]string{}, p.LikerIDs...)
	copied.CommentIDs = append([]string{}, p.CommentIDs...)
	return &copied
}

func (m *memPosts) filter(keep func(*models.Post) bool) []*models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*models.Post{}
	for _, p := range m.posts {
		if keep(p) {
			result = append(result, copyPost(p))
		}
	}
	return result
}

func (m *memPosts) find(postID string) (*models.Post, error) {
	for _, p := range m.posts {
		if p.PostID == postID {
			return p, nil
		}
	}
	return nil, apperr.NotFound("post %s not found", postID)
}

func (m *memPosts) Create(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.posts = append(m.posts, copyPost(post))
	return nil
}

func (m *memPosts) GetByID(ctx context.Context, postID string) (*models.Post, error) {
	m.mu.Lock()
	p, err := m.find(postID)
	var copied *models.Post
	if err == nil {
		copied = copyPost(p)
	}
	m.mu.Unlock()
	if m.readDelay > 0 {
		time.Sleep(m.readDelay)
	}
	return copied, err
}

func (m *memPosts) GetByAuthorID(ctx context.Context, authorID string) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool { return p.AuthorID == authorID }), nil
}

func (m *memPosts) GetByAuthorIDs(ctx context.Context, authorIDs []string) ([]*models.Post, error) {
	m.mu.Lock()
	m.authorQueries = append(m.authorQueries, append([]string{}, authorIDs...))
	m.mu.Unlock()
	authors := set.NewStrings(authorIDs...)
	return m.filter(func(p *models.Post) bool { return authors.Contains(p.AuthorID) }), nil
}

func (m *memPosts) GetCreatedAfter(ctx context.Context, since int64) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool { return p.CreatedAt > since }), nil
}

func (m *memPosts) SearchByToken(ctx context.Context, token string) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool {
		return set.NewStrings(p.SearchTokens...).Contains(token)
	}), nil
}

func (m *memPosts) UpdateAuthorImage(ctx context.Context, authorID, imageURL string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.posts {
		if p.AuthorID == authorID && p.AuthorImageURL != imageURL {
			p.AuthorImageURL = imageURL
			n++
		}
	}
	return n, nil
}

func (m *memPosts) AddLiker(ctx context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.find(postID)
	if err != nil {
		return err
	}
	if !p.LikedBy(userID) {
		p.LikerIDs = append(p.LikerIDs, userID)
	}
	return nil
}

func (m *memPosts) RemoveLiker(ctx context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.find(postID)
	if err != nil {
		return err
	}
	p.LikerIDs, _ = models.ToggleID(p.LikerIDs, userID)
	return nil
}

func (m *memPosts) AddComment(ctx context.Context, postID, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	p, err := m.find(postID)
	if err != nil {
		return err
	}
	if !set.NewStrings(p.CommentIDs...).Contains(commentID) {
		p.CommentIDs = append(p.CommentIDs, commentID)
	}
	return nil
}

type memComments struct {
	mu       sync.Mutex
	comments []*models.Comment
}

func (m *memComments) Create(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *comment
	m.comments = append(m.comments, &copied)
	return nil
}

func (m *memComments) GetByPostID(ctx context.Context, postID string) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*models.Comment{}
	for _, c := range m.comments {
		if c.PostID == postID {
			copied := *c
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *memComments) Delete(ctx context.Context, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.comments[:0]
	for _, c := range m.comments {
		if c.CommentID != commentID {
			kept = append(kept, c)
		}
	}
	m.comments = kept
	return nil
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) UploadImage(ctx context.Context, prefix, ownerID, fileName string, file io.Reader, size int64, contentType string) (string, string, error) {
	args := m.Called(ctx, prefix, ownerID, fileName, file, size, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockStorage) DeleteImage(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

// recordingHub keeps everything published to it.
type recordingHub struct {
	mu       sync.Mutex
	messages []string
	errs     []error
	states   []events.FeedState
}

func (h *recordingHub) Notify(userID, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *recordingHub) NotifyError(userID string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHub) FeedStateChanged(userID string, state events.FeedState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, state)
}

func (h *recordingHub) feedStates() []events.FeedState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.FeedState{}, h.states...)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
