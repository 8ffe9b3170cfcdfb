package bot_detector

// BotDetectorData is attached to allowed requests for downstream
// logging and to rejection events.
type BotDetectorData struct {
	Score      int      `json:"score"`
	Indicators []string `json:"indicators"`
}

// Automation tooling leaves these substrings in the User-Agent. The
// lists and weights are fixed: the classifier is a reproducible scoring
// function, not a trained model.
var automationSignatures = []string{
	"selenium",
	"webdriver",
	"playwright",
	"puppeteer",
	"phantomjs",
}

var headlessSignatures = []string{
	"headlesschrome",
	"headless",
}

var genericBotSignatures = []string{
	"bot",
	"crawler",
	"spider",
	"scrapy",
	"curl",
	"wget",
	"python-requests",
	"go-http-client",
}

// Headers that only automation stacks send.
var automationHeaders = map[string]int{
	"Webdriver": 40,
	"X-Devtools-Emulate-Network-Conditions-Client-Id": 60,
	"X-Chrome-Devtools": 60,
}
