package security

import (
	"os"
	"os/user"
	"runtime"
)

// IsPrivileged сообщает, запущен ли процесс от root.
// На Windows всегда false: привилегии там не влияют на доступ к источнику.
func IsPrivileged() bool {
	if runtime.GOOS == "windows" {
		return false
	}
	return os.Geteuid() == 0
}

// CurrentUser возвращает имя пользователя ОС для записей аудита
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if name := os.Getenv(env); name != "" {
			return name
		}
	}
	return "unknown"
}

// Actor - подпись процесса в аудите: mysqldump@<пользователь ОС>
func Actor(program string) string {
	return program + "@" + CurrentUser()
}
