// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("log.level", "info")

	viper.SetDefault("source.dumppath", "data/legacy_dump.json")

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "stylr_migration.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.database", "stylr")

	viper.SetDefault("storage.backend", "http")
	viper.SetDefault("storage.local.path", "media/")
	viper.SetDefault("storage.http.bucket", "media")
	viper.SetDefault("storage.sftp.port", 22)
	viper.SetDefault("storage.ftp.port", 21)

	viper.SetDefault("batch.size", 100)
	viper.SetDefault("batch.delayms", 150)
	viper.SetDefault("batch.maxretries", 3)
	viper.SetDefault("batch.baseretrydelayms", 500)
	viper.SetDefault("batch.fallbacktosingles", true)

	viper.SetDefault("media.tempdir", "")
	viper.SetDefault("media.fanout", 4)
	viper.SetDefault("media.compression.tool", "magick")
	viper.SetDefault("media.compression.jpegquality", 75)
	viper.SetDefault("media.compression.webpquality", 75)
	viper.SetDefault("media.compression.pngquality", 90)
	viper.SetDefault("media.compression.gifquality", 90)

	viper.SetDefault("score.samplesize", 20)

	viper.SetDefault("checkpoint.dir", "checkpoints/")

	viper.SetDefault("notify.enabled", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
}
