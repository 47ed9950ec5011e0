package conf

import (
	"errors"
	"fmt"
	"os"
)

// ValidateSettings checks the fatal/environmental preconditions of a
// migration run: a readable dump file, exactly one target database, and a
// usable storage backend. Failures here abort the process before any batch
// work starts.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if settings.Source.DumpPath == "" {
		errs = append(errs, errors.New("source dump path is required"))
	} else if _, err := os.Stat(settings.Source.DumpPath); err != nil {
		errs = append(errs, fmt.Errorf("source dump file %s: %w", settings.Source.DumpPath, err))
	}

	if err := validateDatabase(&settings.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateStorage(&settings.Storage); err != nil {
		errs = append(errs, err)
	}

	if settings.Checkpoint.Dir == "" {
		errs = append(errs, errors.New("checkpoint directory is required"))
	}

	if settings.Notify.Enabled && settings.Notify.URL == "" {
		errs = append(errs, errors.New("notify is enabled but no service URL is set"))
	}

	return errors.Join(errs...)
}

func validateDatabase(db *DatabaseSettings) error {
	switch {
	case db.SQLite.Enabled && db.MySQL.Enabled:
		return errors.New("only one target database may be enabled")
	case db.SQLite.Enabled:
		if db.SQLite.Path == "" {
			return errors.New("sqlite path is required")
		}
	case db.MySQL.Enabled:
		if db.MySQL.Username == "" || db.MySQL.Database == "" {
			return errors.New("mysql username and database are required")
		}
	default:
		return errors.New("no target database enabled")
	}
	return nil
}

func validateStorage(st *StorageSettings) error {
	switch st.Backend {
	case "http":
		if st.HTTP.BaseURL == "" {
			return errors.New("storage http base URL is required")
		}
		if st.HTTP.ServiceKey == "" {
			return errors.New("storage service key is required")
		}
	case "sftp":
		if st.SFTP.Host == "" || st.SFTP.Username == "" {
			return errors.New("sftp host and username are required")
		}
	case "ftp":
		if st.FTP.Host == "" || st.FTP.Username == "" {
			return errors.New("ftp host and username are required")
		}
	case "local":
		if st.Local.Path == "" {
			return errors.New("local storage path is required")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", st.Backend)
	}
	return nil
}
