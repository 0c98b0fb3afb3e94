package bridge

import (
	"context"
	"encoding/base64"

	"github.com/wilhg/y8bridge/pkg/codec"
	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/protocol"
)

// AutoLogin logs the player in silently when the platform remembers them.
func (b *Bridge) AutoLogin(ctx context.Context) Result[*protocol.Authorisation] {
	return typed[*protocol.Authorisation](b.call(ctx, protocol.KindAutoLogin, nil))
}

// Login opens the platform's login dialog.
func (b *Bridge) Login(ctx context.Context) Result[*protocol.Authorisation] {
	return typed[*protocol.Authorisation](b.call(ctx, protocol.KindLogin, nil))
}

// Register opens the platform's registration dialog.
func (b *Bridge) Register(ctx context.Context) Result[*protocol.Authorisation] {
	return typed[*protocol.Authorisation](b.call(ctx, protocol.KindRegister, nil))
}

// ShowAd shows an interstitial. It is skipped while the host is fullscreen or
// when no ads id is configured.
func (b *Bridge) ShowAd(ctx context.Context) Result[protocol.Empty] {
	if b.fullscreen != nil && b.fullscreen() {
		return typed[protocol.Empty](b.precondition(protocol.KindShowAd, errmodel.CodeFullscreen, "ads are not shown in fullscreen"))
	}
	if b.adsID == "" {
		return typed[protocol.Empty](b.precondition(protocol.KindShowAd, errmodel.CodeAdsDisabled, "no ads id configured"))
	}
	return typed[protocol.Empty](b.call(ctx, protocol.KindShowAd, nil))
}

func (b *Bridge) ShowAchievementList(ctx context.Context) Result[protocol.Empty] {
	return typed[protocol.Empty](b.call(ctx, protocol.KindAchievementList, nil))
}

// Achievement identifies an achievement to unlock.
type Achievement struct {
	Title           string
	Key             string
	Overwrite       bool
	AllowDuplicates bool
}

func (b *Bridge) SaveAchievement(ctx context.Context, a Achievement) Result[*protocol.AchievementSave] {
	if out, ok := b.requireLogin(protocol.KindAchievementSave); !ok {
		return typed[*protocol.AchievementSave](out)
	}
	return typed[*protocol.AchievementSave](b.call(ctx, protocol.KindAchievementSave, []codec.Pair{
		{Key: "achievement", Value: codec.String(a.Title)},
		{Key: "achievementkey", Value: codec.String(a.Key)},
		{Key: "overwrite", Value: codec.Bool(a.Overwrite)},
		{Key: "allowduplicates", Value: codec.Bool(a.AllowDuplicates)},
	}))
}

// Tables lists the leaderboard table names of the application.
func (b *Bridge) Tables(ctx context.Context) Result[*protocol.ScoreTables] {
	return typed[*protocol.ScoreTables](b.call(ctx, protocol.KindTables, nil))
}

type scoreOptions struct {
	mode            string
	perPage         int
	page            int
	highest         bool
	playerID        string
	milliseconds    bool
	allowDuplicates bool
	playerName      *string
}

// ScoreOption adjusts a leaderboard request. Options that do not apply to an
// operation are ignored by it.
type ScoreOption func(*scoreOptions)

// WithMode selects the period: "alltime", "last30days", "last7days" or "today".
func WithMode(mode string) ScoreOption { return func(o *scoreOptions) { o.mode = mode } }
func WithPerPage(n int) ScoreOption    { return func(o *scoreOptions) { o.perPage = n } }
func WithPage(n int) ScoreOption       { return func(o *scoreOptions) { o.page = n } }

// WithHighest chooses whether higher scores rank first.
func WithHighest(highest bool) ScoreOption { return func(o *scoreOptions) { o.highest = highest } }

// WithPlayerID restricts CustomScore to one player.
func WithPlayerID(pid string) ScoreOption { return func(o *scoreOptions) { o.playerID = pid } }

// WithMilliseconds makes ShowScoreList format points as times.
func WithMilliseconds() ScoreOption { return func(o *scoreOptions) { o.milliseconds = true } }

func WithAllowDuplicates(allow bool) ScoreOption {
	return func(o *scoreOptions) { o.allowDuplicates = allow }
}

// WithPlayerName overrides the name SaveScore submits, which defaults to the
// player's nickname.
func WithPlayerName(name string) ScoreOption { return func(o *scoreOptions) { o.playerName = &name } }

func newScoreOptions(opts []ScoreOption) scoreOptions {
	o := scoreOptions{mode: "alltime", perPage: 20, page: 1, highest: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CustomScore reads one page of a leaderboard.
func (b *Bridge) CustomScore(ctx context.Context, table string, opts ...ScoreOption) Result[*protocol.ScoreTable] {
	o := newScoreOptions(opts)
	pairs := []codec.Pair{
		{Key: "table", Value: codec.String(table)},
		{Key: "mode", Value: codec.String(o.mode)},
		{Key: "perPage", Value: codec.Int(int64(o.perPage))},
		{Key: "page", Value: codec.Int(int64(o.page))},
		{Key: "highest", Value: codec.Bool(o.highest)},
	}
	if o.playerID != "" {
		pairs = append(pairs, codec.Pair{Key: "playerid", Value: codec.String(o.playerID)})
	}
	return typed[*protocol.ScoreTable](b.call(ctx, protocol.KindCustomScore, pairs))
}

// ShowScoreList opens the platform's leaderboard dialog.
func (b *Bridge) ShowScoreList(ctx context.Context, table string, opts ...ScoreOption) Result[protocol.Empty] {
	o := newScoreOptions(opts)
	pairs := []codec.Pair{
		{Key: "table", Value: codec.String(table)},
		{Key: "mode", Value: codec.String(o.mode)},
		{Key: "highest", Value: codec.Bool(o.highest)},
	}
	// The SDK treats an explicit false differently from an absent key.
	if o.milliseconds {
		pairs = append(pairs, codec.Pair{Key: "useMilli", Value: codec.Bool(true)})
	}
	return typed[protocol.Empty](b.call(ctx, protocol.KindScoreList, pairs))
}

// SaveScore submits points to a leaderboard under the player's nickname.
func (b *Bridge) SaveScore(ctx context.Context, table string, points int64, opts ...ScoreOption) Result[*protocol.ScoreSave] {
	if out, ok := b.requireLogin(protocol.KindScoreSave); !ok {
		return typed[*protocol.ScoreSave](out)
	}
	o := newScoreOptions(opts)
	name := b.session.Nickname()
	if o.playerName != nil {
		name = *o.playerName
	}
	return typed[*protocol.ScoreSave](b.call(ctx, protocol.KindScoreSave, []codec.Pair{
		{Key: "table", Value: codec.String(table)},
		{Key: "points", Value: codec.Int(points)},
		{Key: "allowduplicates", Value: codec.Bool(o.allowDuplicates)},
		{Key: "highest", Value: codec.Bool(o.highest)},
		{Key: "playername", Value: codec.String(name)},
	}))
}

// Invitation is the content of an app request dialog.
type Invitation struct {
	Message     string
	RedirectURI string
	Data        string
}

func (b *Bridge) AppRequest(ctx context.Context, inv Invitation) Result[protocol.Empty] {
	return typed[protocol.Empty](b.call(ctx, protocol.KindAppRequest, []codec.Pair{
		{Key: "method", Value: codec.String("apprequests")},
		{Key: "message", Value: codec.String(inv.Message)},
		{Key: "redirect_uri", Value: codec.String(inv.RedirectURI)},
		{Key: "data", Value: codec.String(inv.Data)},
	}))
}

func (b *Bridge) FriendRequest(ctx context.Context, targetID, redirectURI string) Result[protocol.Empty] {
	return typed[protocol.Empty](b.call(ctx, protocol.KindFriendRequest, []codec.Pair{
		{Key: "method", Value: codec.String("friends")},
		{Key: "id", Value: codec.String(targetID)},
		{Key: "redirect_uri", Value: codec.String(redirectURI)},
	}))
}

// Post is the content of a share dialog. Empty fields are still sent.
type Post struct {
	Link        string
	Description string
	Name        string
	Caption     string
	Picture     string
}

func (b *Bridge) Share(ctx context.Context, p Post) Result[protocol.Empty] {
	return typed[protocol.Empty](b.call(ctx, protocol.KindShare, []codec.Pair{
		{Key: "method", Value: codec.String("feed")},
		{Key: "link", Value: codec.String(p.Link)},
		{Key: "description", Value: codec.String(p.Description)},
		{Key: "name", Value: codec.String(p.Name)},
		{Key: "caption", Value: codec.String(p.Caption)},
		{Key: "picture", Value: codec.String(p.Picture)},
	}))
}

// SetData stores value under key in the player's cloud storage.
func (b *Bridge) SetData(ctx context.Context, key, value string) Result[*protocol.SetData] {
	if out, ok := b.requireLogin(protocol.KindSetData); !ok {
		return typed[*protocol.SetData](out)
	}
	if out, ok := b.throttle(ctx, protocol.KindSetData); !ok {
		return typed[*protocol.SetData](out)
	}
	return typed[*protocol.SetData](b.call(ctx, protocol.KindSetData, []codec.Pair{
		{Key: "key", Value: codec.String(key)},
		{Key: "value", Value: codec.String(value)},
	}))
}

// GetData reads key from the player's cloud storage. The stored value is
// returned with its string encoding removed.
func (b *Bridge) GetData(ctx context.Context, key string) Result[string] {
	if out, ok := b.requireLogin(protocol.KindGetData); !ok {
		return typed[string](out)
	}
	out := b.call(ctx, protocol.KindGetData, []codec.Pair{{Key: "key", Value: codec.String(key)}})
	if gd, ok := out.Payload.(*protocol.GetData); ok {
		return Result[string]{Success: out.Success, Data: gd.Value, Err: out.Err}
	}
	return typed[string](out)
}

func (b *Bridge) ClearData(ctx context.Context, key string) Result[*protocol.SetData] {
	if out, ok := b.requireLogin(protocol.KindClearData); !ok {
		return typed[*protocol.SetData](out)
	}
	if out, ok := b.throttle(ctx, protocol.KindClearData); !ok {
		return typed[*protocol.SetData](out)
	}
	return typed[*protocol.SetData](b.call(ctx, protocol.KindClearData, []codec.Pair{
		{Key: "key", Value: codec.String(key)},
	}))
}

// IsBlacklisted reports whether the site hosting the game is blacklisted.
func (b *Bridge) IsBlacklisted(ctx context.Context) Result[bool] {
	return typed[bool](b.call(ctx, protocol.KindBlacklist, nil))
}

// IsSponsor reports whether the site hosting the game is a sponsor.
func (b *Bridge) IsSponsor(ctx context.Context) Result[bool] {
	return typed[bool](b.call(ctx, protocol.KindSponsor, nil))
}

// SaveScreenshot uploads a PNG to the player's gallery and returns the URL of
// the stored picture.
func (b *Bridge) SaveScreenshot(ctx context.Context, png []byte) Result[string] {
	if out, ok := b.requireLogin(protocol.KindSaveScreenshot); !ok {
		return typed[string](out)
	}
	out := b.call(ctx, protocol.KindSaveScreenshot, []codec.Pair{
		{Key: "image", Value: codec.String("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))},
	})
	if s, ok := out.Payload.(*protocol.Screenshot); ok {
		return Result[string]{Success: out.Success, Data: s.Image, Err: out.Err}
	}
	return typed[string](out)
}

func (b *Bridge) throttle(ctx context.Context, kind protocol.RequestKind) (codec.Outcome, bool) {
	if b.saveLimiter == nil {
		return codec.Outcome{}, true
	}
	if err := b.saveLimiter.Wait(ctx); err != nil {
		b.log.Debug("save throttled", "kind", string(kind), "error", err)
		return failed(kind, errmodel.New(errmodel.CategorySystem, errmodel.CodeThrottled,
			"save rate exceeded", map[string]any{"kind": string(kind)}, err)), false
	}
	return codec.Outcome{}, true
}
