package credentials

import (
	"os"
	"strings"
)

func envVarName(adapterName, field string) string {
	normalized := strings.ToUpper(adapterName)
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return "DYNC_" + normalized + "_" + strings.ToUpper(field)
}

// EnvUsername reads DYNC_{ADAPTER}_USERNAME.
func EnvUsername(adapterName string) string {
	if adapterName == "" {
		return ""
	}
	return os.Getenv(envVarName(adapterName, "USERNAME"))
}

// EnvPassword reads DYNC_{ADAPTER}_PASSWORD.
func EnvPassword(adapterName string) string {
	if adapterName == "" {
		return ""
	}
	return os.Getenv(envVarName(adapterName, "PASSWORD"))
}

// EnvHost reads DYNC_{ADAPTER}_HOST.
func EnvHost(adapterName string) string {
	if adapterName == "" {
		return ""
	}
	return os.Getenv(envVarName(adapterName, "HOST"))
}
