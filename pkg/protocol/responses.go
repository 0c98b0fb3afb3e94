package protocol

import "encoding/json"

// Authorisation is the payload of every auth-kind response. It is the session
// snapshot installed by the bridge whenever an auth response arrives.
type Authorisation struct {
	AuthResponse *AuthResponse `json:"authResponse"`
	Status       string        `json:"status"`
}

// AuthResponse holds the token and the player's profile details.
type AuthResponse struct {
	State       string          `json:"state"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int64           `json:"expires_in"`
	Score       json.RawMessage `json:"score,omitempty"`
	RedirectURI string          `json:"redirect_uri"`
	Details     *Details        `json:"details"`
}

// Details is the player profile. A non-empty PID means the player is logged in.
type Details struct {
	Level        int           `json:"level"`
	TrustDetails *TrustDetails `json:"trust_details,omitempty"`
	FirstName    string        `json:"first_name"`
	DOB          string        `json:"dob"`
	Language     string        `json:"language"`
	Gender       string        `json:"gender"`
	Nickname     string        `json:"nickname"`
	PID          string        `json:"pid"`
	Locale       string        `json:"locale"`
	Avatars      *Avatars      `json:"avatars,omitempty"`
	Version      string        `json:"version"`
	Risk         *Risk         `json:"risk,omitempty"`
}

type TrustDetails struct {
	Email         string `json:"email"`
	Mobile        bool   `json:"mobile"`
	Certification bool   `json:"certification"`
}

type Avatars struct {
	ThumbURL        string `json:"thumb_url"`
	ThumbSecureURL  string `json:"thumb_secure_url"`
	MediumURL       string `json:"medium_url"`
	MediumSecureURL string `json:"medium_secure_url"`
	LargeURL        string `json:"large_url"`
	LargeSecureURL  string `json:"large_secure_url"`
}

type Risk struct {
	Registration *RiskElement `json:"registration,omitempty"`
	Login        *RiskElement `json:"login,omitempty"`
}

type RiskElement struct {
	Risk      string `json:"risk"`
	RealIP    string `json:"real_ip"`
	RequestIP string `json:"request_ip"`
}

// AchievementSave is the achievement_save response.
type AchievementSave struct {
	Name         string `json:"name"`
	Unlocked     bool   `json:"unlocked"`
	ErrorCode    int    `json:"errorcode"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errormessage"`
}

// ScoreSave is the score_save response.
type ScoreSave struct {
	ErrorCode    int    `json:"errorcode"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errormessage"`
}

// SetData is the set_data and clear_data response. Status "ok" means success.
type SetData struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

// GetData is the get_data response. JSONData is the value as delivered by the
// SDK; Value is JSONData with one layer of string encoding removed.
type GetData struct {
	Error    string `json:"error"`
	Key      string `json:"key"`
	JSONData string `json:"jsondata"`
	Value    string `json:"-"`
}

// ScoreTable is the custom_score response.
type ScoreTable struct {
	Scores    []Score `json:"scores"`
	NumScores int     `json:"numscores"`
	Mode      string  `json:"mode"`
	ErrorCode int     `json:"errorcode"`
	Success   bool    `json:"success"`
}

type Score struct {
	Table       string          `json:"table"`
	PlayerID    string          `json:"playerid"`
	PlayerName  string          `json:"playername"`
	AppID       string          `json:"appid"`
	TableID     string          `json:"tableid"`
	Points      float64         `json:"points"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	LastUpdated int64           `json:"lastupdated"`
	Date        int64           `json:"date"`
	Rank        int             `json:"rank"`
	ScoreID     string          `json:"scoreid"`
	RDate       string          `json:"rdate"`
}

// ScoreTables is the tables response.
type ScoreTables struct {
	Tables    []string `json:"tables"`
	ErrorCode int      `json:"errorcode"`
	Success   bool     `json:"success"`
}

// Screenshot is the save_screenshot response; Image is the URL of the stored picture.
type Screenshot struct {
	Image string `json:"image"`
}

// Empty is the payload of commands whose response carries no data.
type Empty struct{}
