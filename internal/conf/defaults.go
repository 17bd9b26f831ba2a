// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultEndpoint          = "http://localhost:11434/api/generate"
	DefaultModel             = "llava:34b"
	DefaultKeywordsPrompt    = "Please provide a list of keywords that describes this image. Only return a comma separated list of keywords and nothing else."
	DefaultDescriptionPrompt = "Describe this image in two short sentences. Only return the description and nothing else."
	DefaultProcessedSuffix   = "-processed"
	DefaultBackupSuffix      = "_original"
)

// DefaultImageExtensions is the scanner allow-list used when none is configured.
var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "photofinder")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "logs/photofinder.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("input.path", "")

	viper.SetDefault("scanner.extensions", DefaultImageExtensions)

	viper.SetDefault("inference.endpoint", DefaultEndpoint)
	viper.SetDefault("inference.model", DefaultModel)
	viper.SetDefault("inference.timeout", 120*time.Second)
	viper.SetDefault("inference.maxretries", 3)
	viper.SetDefault("inference.retrydelay", 2*time.Second)
	viper.SetDefault("inference.ratelimit", 0.0)

	viper.SetDefault("phases.keywords.enabled", true)
	viper.SetDefault("phases.keywords.prompt", DefaultKeywordsPrompt)
	viper.SetDefault("phases.description.enabled", false)
	viper.SetDefault("phases.description.prompt", DefaultDescriptionPrompt)

	viper.SetDefault("metadata.enabled", true)
	viper.SetDefault("metadata.exiftoolpath", "")
	viper.SetDefault("metadata.backuporiginal", true)

	viper.SetDefault("archive.enabled", true)
	viper.SetDefault("archive.suffix", DefaultProcessedSuffix)
	viper.SetDefault("archive.extensions", []string{".jpg"})
	viper.SetDefault("archive.backupsuffix", DefaultBackupSuffix)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "image_keywords.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "photofinder")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "photofinder")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("output.report.path", "")

	viper.SetDefault("metrics.textfile", "")

	viper.SetDefault("pipeline.diskcheck", true)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
