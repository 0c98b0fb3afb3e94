// Package protocol defines the request kinds understood by the Y8 JavaScript SDK
// and the response shapes it delivers back to the host.
//
// The SDK tags every response with the request kind that produced it. The kind
// decides both the shape the body is parsed into and the rule that classifies
// the response as a success or a failure.
package protocol

import "slices"

// RequestKind identifies an SDK operation and the shape of its response.
type RequestKind string

// Request kinds accepted by the SDK call primitive.
const (
	KindAutoLogin       RequestKind = "auto_login"
	KindLogin           RequestKind = "login"
	KindRegister        RequestKind = "register"
	KindShowAd          RequestKind = "show_ad"
	KindAchievementList RequestKind = "achievement_list"
	KindAchievementSave RequestKind = "achievement_save"
	KindTables          RequestKind = "tables"
	KindCustomScore     RequestKind = "custom_score"
	KindScoreList       RequestKind = "score_list"
	KindScoreSave       RequestKind = "score_save"
	KindAppRequest      RequestKind = "app_request"
	KindFriendRequest   RequestKind = "friend_request"
	KindShare           RequestKind = "share"
	KindSetData         RequestKind = "set_data"
	KindGetData         RequestKind = "get_data"
	KindClearData       RequestKind = "clear_data"
	KindBlacklist       RequestKind = "blacklist"
	KindSponsor         RequestKind = "sponsor"
	KindSaveScreenshot  RequestKind = "save_screenshot"
)

// Kinds lists every known request kind in catalogue order.
func Kinds() []RequestKind {
	return []RequestKind{
		KindAutoLogin, KindLogin, KindRegister,
		KindShowAd,
		KindAchievementList, KindAchievementSave,
		KindTables, KindCustomScore, KindScoreList, KindScoreSave,
		KindAppRequest, KindFriendRequest, KindShare,
		KindSetData, KindGetData, KindClearData,
		KindBlacklist, KindSponsor,
		KindSaveScreenshot,
	}
}

// IsAuth reports whether responses of this kind carry an authorisation snapshot.
func (k RequestKind) IsAuth() bool {
	switch k {
	case KindAutoLogin, KindLogin, KindRegister:
		return true
	}
	return false
}

// Known reports whether k is part of the SDK catalogue.
func (k RequestKind) Known() bool { return slices.Contains(Kinds(), k) }

func (k RequestKind) String() string { return string(k) }
