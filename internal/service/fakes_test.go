package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"forumhub/internal/model"
	"forumhub/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// ---- comments ----

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments map[string]*model.Comment
	seq      int
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: map[string]*model.Comment{}}
}

func (r *fakeCommentRepo) Create(_ context.Context, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		r.seq++
		c.CreatedAt = baseTime.Add(time.Duration(r.seq) * time.Second)
		c.UpdatedAt = c.CreatedAt
	}
	cp := *c
	cp.Author = nil
	r.comments[c.ID] = &cp
	return nil
}

func (r *fakeCommentRepo) mutate(id string, apply func(*model.Comment)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.comments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	apply(stored)
	return nil
}

func (r *fakeCommentRepo) UpdateContent(_ context.Context, id, content string) error {
	return r.mutate(id, func(c *model.Comment) {
		c.Content = content
		c.IsEdited = true
	})
}

func (r *fakeCommentRepo) Tombstone(_ context.Context, id string) error {
	return r.mutate(id, func(c *model.Comment) {
		c.Content = model.DeletedCommentPlaceholder
		c.IsDeleted = true
	})
}

func (r *fakeCommentRepo) MarkFlagged(_ context.Context, id string) error {
	return r.mutate(id, func(c *model.Comment) { c.IsFlagged = true })
}

func (r *fakeCommentRepo) FindByID(_ context.Context, id string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

// hasLiveDescendant walks the replies below id breadth-first.
func (r *fakeCommentRepo) hasLiveDescendant(id string) bool {
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, c := range r.comments {
			if c.ParentID == nil || *c.ParentID != parent || seen[c.ID] {
				continue
			}
			if !c.IsDeleted {
				return true
			}
			seen[c.ID] = true
			queue = append(queue, c.ID)
		}
	}
	return false
}

// visible mirrors the store rule: live, or a tombstone with a live descendant.
func (r *fakeCommentRepo) visible(c *model.Comment) bool {
	return !c.IsDeleted || r.hasLiveDescendant(c.ID)
}

func (r *fakeCommentRepo) selectSorted(match func(*model.Comment) bool, newestFirst bool) []*model.Comment {
	out := []*model.Comment{}
	for _, c := range r.comments {
		if match(c) && r.visible(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *fakeCommentRepo) roots(discussionID string) []*model.Comment {
	return r.selectSorted(func(c *model.Comment) bool {
		return c.DiscussionID == discussionID && c.ParentID == nil
	}, true)
}

func (r *fakeCommentRepo) children(discussionID, parentID string) []*model.Comment {
	return r.selectSorted(func(c *model.Comment) bool {
		return c.DiscussionID == discussionID && c.ParentID != nil && *c.ParentID == parentID
	}, false)
}

func (r *fakeCommentRepo) FindRoots(_ context.Context, discussionID string, limit, offset int) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return window(r.roots(discussionID), limit, offset), nil
}

func (r *fakeCommentRepo) CountRoots(_ context.Context, discussionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.roots(discussionID))), nil
}

func (r *fakeCommentRepo) FindChildren(_ context.Context, discussionID, parentID string, limit, offset int) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return window(r.children(discussionID, parentID), limit, offset), nil
}

func (r *fakeCommentRepo) CountChildren(_ context.Context, discussionID, parentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.children(discussionID, parentID))), nil
}

func (r *fakeCommentRepo) FindAllByDiscussion(_ context.Context, discussionID string) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectSorted(func(c *model.Comment) bool { return c.DiscussionID == discussionID }, false), nil
}

func (r *fakeCommentRepo) CountByDiscussionIDs(_ context.Context, ids []string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	for _, c := range r.comments {
		if _, ok := out[c.DiscussionID]; ok && !c.IsDeleted {
			out[c.DiscussionID]++
		}
	}
	return out, nil
}

func (r *fakeCommentRepo) IDsByDiscussion(_ context.Context, discussionID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, c := range r.comments {
		if c.DiscussionID == discussionID {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// ---- reactions ----

type fakeReactionRepo struct {
	mu          sync.Mutex
	reactions   map[string]*model.Reaction
	discussions *fakeDiscussionRepo
}

func newFakeReactionRepo(discussions *fakeDiscussionRepo) *fakeReactionRepo {
	return &fakeReactionRepo{reactions: map[string]*model.Reaction{}, discussions: discussions}
}

func (r *fakeReactionRepo) Create(_ context.Context, reaction *model.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reactions {
		if existing.UserID == reaction.UserID && existing.TargetID == reaction.TargetID && existing.Type == reaction.Type {
			return gorm.ErrDuplicatedKey
		}
	}
	if reaction.ID == "" {
		reaction.ID = uuid.NewString()
	}
	cp := *reaction
	r.reactions[reaction.ID] = &cp
	return nil
}

func (r *fakeReactionRepo) Find(_ context.Context, userID, targetID, reactionType string) (*model.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reactions {
		if existing.UserID == userID && existing.TargetID == targetID && existing.Type == reactionType {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeReactionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reactions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.reactions, id)
	return nil
}

func (r *fakeReactionRepo) CountByTarget(_ context.Context, targetType, targetID, reactionType string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, existing := range r.reactions {
		if existing.TargetType == targetType && existing.TargetID == targetID && existing.Type == reactionType {
			n++
		}
	}
	return n, nil
}

func (r *fakeReactionRepo) CountByTargets(_ context.Context, targetType, reactionType string, ids []string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	for _, existing := range r.reactions {
		if _, ok := out[existing.TargetID]; ok && existing.TargetType == targetType && existing.Type == reactionType {
			out[existing.TargetID]++
		}
	}
	return out, nil
}

func (r *fakeReactionRepo) FindUserReactedTargets(_ context.Context, userID, targetType, reactionType string, ids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := map[string]bool{}
	for _, existing := range r.reactions {
		if existing.UserID == userID && existing.TargetType == targetType && existing.Type == reactionType && wanted[existing.TargetID] {
			out[existing.TargetID] = true
		}
	}
	return out, nil
}

func (r *fakeReactionRepo) FindBookmarksByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Discussion, int64, error) {
	r.mu.Lock()
	var ids []string
	for _, existing := range r.reactions {
		if existing.UserID == userID && existing.Type == model.ReactionBookmark {
			ids = append(ids, existing.TargetID)
		}
	}
	r.mu.Unlock()
	sort.Strings(ids)

	var out []*model.Discussion
	for _, id := range window(ids, limit, offset) {
		d, err := r.discussions.FindByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, int64(len(ids)), nil
}

// ---- discussions ----

type fakeDiscussionRepo struct {
	mu          sync.Mutex
	discussions map[string]*model.Discussion
	seq         int
}

func newFakeDiscussionRepo() *fakeDiscussionRepo {
	return &fakeDiscussionRepo{discussions: map[string]*model.Discussion{}}
}

func (r *fakeDiscussionRepo) Create(_ context.Context, d *model.Discussion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Tags == "" {
		d.Tags = "[]"
	}
	if d.CreatedAt.IsZero() {
		r.seq++
		d.CreatedAt = baseTime.Add(time.Duration(r.seq) * time.Minute)
	}
	cp := *d
	r.discussions[d.ID] = &cp
	return nil
}

func (r *fakeDiscussionRepo) FindByID(_ context.Context, id string) (*model.Discussion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discussions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDiscussionRepo) List(_ context.Context, f repository.DiscussionFilter) ([]*model.Discussion, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Discussion
	for _, d := range r.discussions {
		if d.IsPrivate && !f.IncludePrivate {
			continue
		}
		if f.Tag != "" && !contains(d.GetTags(), f.Tag) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, f.Limit, f.Offset), int64(len(out)), nil
}

func (r *fakeDiscussionRepo) Update(_ context.Context, d *model.Discussion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.discussions[d.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *d
	r.discussions[d.ID] = &cp
	return nil
}

func (r *fakeDiscussionRepo) IncrementViews(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discussions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.Views++
	return nil
}

func (r *fakeDiscussionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.discussions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.discussions, id)
	return nil
}

// ---- users and roles ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) FindByVerifyToken(_ context.Context, token string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.VerifyToken != nil && *u.VerifyToken == token })
}

func (r *fakeUserRepo) FindByResetToken(_ context.Context, token string) (*model.User, error) {
	now := time.Now()
	return r.find(func(u *model.User) bool {
		return u.ResetToken != nil && *u.ResetToken == token &&
			u.ResetTokenExpireAt != nil && u.ResetTokenExpireAt.After(now)
	})
}

func (r *fakeUserRepo) FindAll(_ context.Context, limit, offset int) ([]model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return window(out, limit, offset), int64(len(out)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *u
	cp.Roles = stored.Roles
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PasswordHash = hash
	u.ResetToken = nil
	u.ResetTokenExpireAt = nil
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}

func (r *fakeUserRepo) ReplaceRoles(_ context.Context, user *model.User, roles []model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Roles = append([]model.Role(nil), roles...)
	user.Roles = append([]model.Role(nil), roles...)
	return nil
}

func (r *fakeUserRepo) CountByRole(_ context.Context, roleName string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.HasRole(roleName) {
			n++
		}
	}
	return n, nil
}

type fakeRoleRepo struct {
	roles []model.Role
}

func newFakeRoleRepo() *fakeRoleRepo {
	roles := model.DefaultRoles()
	for i := range roles {
		roles[i].ID = uuid.NewString()
	}
	return &fakeRoleRepo{roles: roles}
}

func (r *fakeRoleRepo) FindAll(context.Context) ([]model.Role, error) {
	return append([]model.Role(nil), r.roles...), nil
}

func (r *fakeRoleRepo) FindByNames(_ context.Context, names []string) ([]model.Role, error) {
	var out []model.Role
	for _, role := range r.roles {
		if contains(names, role.Name) {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) EnsureDefaults(context.Context) error { return nil }

func (r *fakeRoleRepo) named(names ...string) []model.Role {
	roles, _ := r.FindByNames(context.Background(), names)
	return roles
}

// ---- profiles and audit ----

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: map[string]*model.Profile{}}
}

func (r *fakeProfileRepo) FindByUserID(_ context.Context, userID string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProfileRepo) FindOrCreate(ctx context.Context, userID string) (*model.Profile, error) {
	if p, err := r.FindByUserID(ctx, userID); err == nil {
		return p, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &model.Profile{ID: uuid.NewString(), UserID: userID, Theme: model.ThemeSystem, Interests: "[]", SocialLinks: "{}"}
	r.profiles[userID] = p
	cp := *p
	return &cp, nil
}

func (r *fakeProfileRepo) Update(_ context.Context, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.profiles[p.UserID] = &cp
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*model.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

// ---- reports ----

type fakeReportRepo struct {
	mu      sync.Mutex
	reports map[string]*model.Report
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: map[string]*model.Report{}}
}

func (r *fakeReportRepo) Create(_ context.Context, report *model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	cp := *report
	r.reports[report.ID] = &cp
	return nil
}

func (r *fakeReportRepo) FindByID(_ context.Context, id string) (*model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *report
	return &cp, nil
}

func (r *fakeReportRepo) List(_ context.Context, status string, limit, offset int) ([]*model.Report, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Report
	for _, report := range r.reports {
		if status == "" || report.Status == status {
			cp := *report
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, limit, offset), int64(len(out)), nil
}

func (r *fakeReportRepo) Update(_ context.Context, report *model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[report.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *report
	r.reports[report.ID] = &cp
	return nil
}

func (r *fakeReportRepo) CountByStatusAndType(context.Context) ([]repository.ReportStatRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[[2]string]int64{}
	for _, report := range r.reports {
		counts[[2]string{report.Status, report.TargetType}]++
	}
	var rows []repository.ReportStatRow
	for k, n := range counts {
		rows = append(rows, repository.ReportStatRow{Status: k[0], TargetType: k[1], Count: n})
	}
	return rows, nil
}

// ---- notifications ----

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*model.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: map[string]*model.Notification{}}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = baseTime.Add(time.Duration(len(r.notifications)) * time.Second)
	}
	cp := *n
	r.notifications[n.ID] = &cp
	return nil
}

func (r *fakeNotificationRepo) FindByID(_ context.Context, id string) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNotificationRepo) FindByUserID(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return window(out, limit, offset), int64(len(out)), nil
}

func (r *fakeNotificationRepo) CountUnreadByUserID(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (r *fakeNotificationRepo) MarkAsRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.IsRead = true
	return nil
}

func (r *fakeNotificationRepo) MarkAllAsRead(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notifications[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.notifications, id)
	return nil
}

// ---- collaborators ----

// recordingNotifier captures what the services ask to be notified.
type recordingNotifier struct {
	NotificationService
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) record(kind, receiver string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, kind+":"+receiver)
	return nil
}

func (n *recordingNotifier) NotifyCommentReply(_ context.Context, receiverID, _, _, _, _, _ string) error {
	return n.record("reply", receiverID)
}

func (n *recordingNotifier) NotifyDiscussionComment(_ context.Context, receiverID, _, _, _, _, _ string) error {
	return n.record("discussion_comment", receiverID)
}

func (n *recordingNotifier) NotifyCommentFlagged(_ context.Context, receiverID, _, _ string, _ int64) error {
	return n.record("flagged", receiverID)
}

func (n *recordingNotifier) NotifyRoleUpdated(_ context.Context, receiverID, _ string, _ []string) error {
	return n.record("role_updated", receiverID)
}

func (n *recordingNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

type broadcastEvent struct {
	room  string
	event string
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	events   []broadcastEvent
	payloads map[string][]map[string]interface{}
}

func (b *recordingBroadcaster) BroadcastToDiscussion(discussionID, eventType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{room: discussionID, event: eventType})
}

func (b *recordingBroadcaster) BroadcastToUser(userID string, payload map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.payloads == nil {
		b.payloads = map[string][]map[string]interface{}{}
	}
	b.payloads[userID] = append(b.payloads[userID], payload)
}

func (b *recordingBroadcaster) Events() []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastEvent(nil), b.events...)
}

func (b *recordingBroadcaster) UserPayloads(userID string) []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]interface{}(nil), b.payloads[userID]...)
}

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	messages map[string][][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, _ string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.messages == nil {
		p.messages = map[string][][]byte{}
	}
	p.messages[exchange] = append(p.messages[exchange], body)
	return nil
}

func (p *recordingPublisher) Messages(exchange string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.messages[exchange]...)
}

type recordingEmail struct {
	mu   sync.Mutex
	jobs []EmailJob
}

func (e *recordingEmail) Send(_ context.Context, job EmailJob) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, job)
	return nil
}

func (e *recordingEmail) Jobs() []EmailJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EmailJob(nil), e.jobs...)
}

type fakeUploader struct {
	calls int
	mime  string
}

func (u *fakeUploader) UploadAvatar(_ context.Context, userID string, _ []byte, mimeType string) (string, error) {
	u.calls++
	u.mime = mimeType
	return "https://cdn.example.com/avatars/" + userID + ".png", nil
}

// ---- fixture ----

type forum struct {
	comments    *fakeCommentRepo
	reactions   *fakeReactionRepo
	discussions *fakeDiscussionRepo
	users       *fakeUserRepo
	roles       *fakeRoleRepo
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
}

func newForum() *forum {
	discussions := newFakeDiscussionRepo()
	return &forum{
		comments:    newFakeCommentRepo(),
		reactions:   newFakeReactionRepo(discussions),
		discussions: discussions,
		users:       newFakeUserRepo(),
		roles:       newFakeRoleRepo(),
		notifier:    &recordingNotifier{},
		broadcaster: &recordingBroadcaster{},
	}
}

func (f *forum) user(first string, roles ...string) *Requester {
	if len(roles) == 0 {
		roles = []string{model.RoleUser}
	}
	u := &model.User{
		Email:     first + "@example.com",
		FirstName: first,
		LastName:  "Tester",
		Roles:     f.roles.named(roles...),
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return &Requester{UserID: u.ID, Email: u.Email, Roles: roles}
}

func (f *forum) discussion(author *Requester, mutate ...func(*model.Discussion)) *model.Discussion {
	d := &model.Discussion{Title: "Discussion", Content: "body", AuthorID: author.UserID}
	for _, m := range mutate {
		m(d)
	}
	if err := f.discussions.Create(context.Background(), d); err != nil {
		panic(err)
	}
	return d
}

func (f *forum) comment(d *model.Discussion, author *Requester, content string, parent *model.Comment) *model.Comment {
	c := &model.Comment{DiscussionID: d.ID, AuthorID: author.UserID, Content: content}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if err := f.comments.Create(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}

func (f *forum) assembler(maxDepth int) *CommentTreeAssembler {
	return NewCommentTreeAssembler(f.comments, f.reactions, f.discussions, maxDepth)
}

func (f *forum) commentService(threshold int) CommentService {
	s := NewCommentService(f.comments, f.discussions, f.reactions, f.users, f.notifier, threshold)
	s.SetWSHub(f.broadcaster)
	return s
}
