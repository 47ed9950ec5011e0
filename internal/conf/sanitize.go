package conf

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Sanitized returns a deep copy of the settings with credentials blanked.
// The copy is embedded in run reports so a report never leaks secrets.
func (s *Settings) Sanitized() *Settings {
	sanitized := *s
	sanitized.Database.MySQL.Password = ""
	sanitized.Storage.HTTP.ServiceKey = ""
	sanitized.Storage.SFTP.Password = ""
	sanitized.Storage.FTP.Password = ""
	sanitized.Notify.URL = ""
	return &sanitized
}

// SanitizedYAML renders the sanitized settings as YAML for inclusion in the
// run report.
func (s *Settings) SanitizedYAML() (string, error) {
	data, err := yaml.Marshal(s.Sanitized())
	if err != nil {
		return "", fmt.Errorf("marshaling sanitized settings: %w", err)
	}
	return string(data), nil
}
