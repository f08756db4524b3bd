package config

import "time"

const (
	SinkDiscord  = "discord"
	SinkTelegram = "telegram"
	SinkStdout   = "stdout"

	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

const (
	DefaultEntryLimit      = 10
	DefaultCapacity        = 200
	DefaultFreshnessWindow = 24 * time.Hour
	DefaultMinInterval     = time.Second
	DefaultNotifyTimeout   = 10 * time.Second
	DefaultRetryMax        = 0
	DefaultFeedTimeout     = 20 * time.Second
	DefaultDeepScanDelay   = time.Second
	DefaultDeepScanTimeout = 15 * time.Second
	DefaultDeepScanBytes   = 2 << 20
	DefaultSchedule        = "30m"
	DefaultStorePath       = "data.json"
	DefaultConfigPath      = "./config.yaml"
	DefaultRedisKey        = "couponwatch:seen"
	DefaultUserAgent       = "couponwatch/1.0 (+https://github.com/couponwatch)"
)

// DefaultSources is the curated list of press-release, gadget and deal sites.
var DefaultSources = []SourceConfig{
	// press releases: food & drink campaigns and coupons
	{URL: "https://prtimes.jp/gourmet.rdf"},
	// press releases: technology and app sales
	{URL: "https://prtimes.jp/technology.rdf"},
	{URL: "https://prtimes.jp/app.rdf"},
	// press releases: entertainment and game giveaways
	{URL: "https://prtimes.jp/entertainment.rdf"},
	// gadgets, Apple, Amazon sales
	{URL: "https://touchlab.jp/feed/"},
	{URL: "https://www.gizmodo.jp/index.xml"},
	{URL: "https://corriente.top/feed/"},
	{URL: "https://www.lifehacker.jp/feed/index.xml"},
	// food, bargains
	{URL: "https://rocketnews24.com/feed/"},
	// free game giveaways, Steam sales
	{URL: "https://automaton-media.com/feed/"},
}

// DefaultKeywords are the title terms that make an entry worth scanning
// (coupon, code, half price, sale, free, discount, campaign, bargain,
// special price, giveaway, yen off, points).
var DefaultKeywords = []string{
	"クーポン", "コード", "半額", "セール", "無料", "割引",
	"キャンペーン", "激安", "特価", "配布", "円OFF", "ポイント",
}

// DefaultStrongSignals are title terms that justify a "check the link" alert
// even when no code was extracted.
var DefaultStrongSignals = []string{
	"半額", "無料", "0円", "タダ", "free", "half price",
}
