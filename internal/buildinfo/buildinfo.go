package buildinfo

import "fmt"

// Set with -ldflags "-X cargoplan/internal/buildinfo.Version=..."
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    return map[string]string{"version": Version, "commit": Commit, "builtAt": BuiltAt}
}

func String() string {
    s := "cargoplan " + Version
    if Commit != "" { s += fmt.Sprintf(" (%s)", Commit) }
    if BuiltAt != "" { s += " built " + BuiltAt }
    return s
}
