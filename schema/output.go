package schema

// DefaultPrompt prefixes echoed commands in the output log.
const DefaultPrompt = "root@next:~#"

// NoOutputText replaces an empty successful command result.
const NoOutputText = "No output returned"

// UnknownErrorText is shown when the endpoint fails without a message.
const UnknownErrorText = "Unknown error"

// TransportErrorText is shown when the execution endpoint cannot be reached.
const TransportErrorText = "Error: Network or unexpected error"

// InvalidImageURLText is shown when showimage has no URL argument.
const InvalidImageURLText = "Error: Invalid image URL."

// InvalidThemeURLText is shown when nextvm has no URL argument.
const InvalidThemeURLText = "Error: Invalid theme URL."

// DefaultBanner is the ASCII art shown in fresh and cleared sessions.
const DefaultBanner = `
███▄▄▄▄      ▄████████ ▀████    ▐████▀     ███      ▄█    █▄    ▄▄▄▄███▄▄▄▄
███▀▀▀██▄   ███    ███   ███▌   ████▀  ▀█████████▄ ███    ███ ▄██▀▀▀███▀▀▀██▄
███   ███   ███    █▀     ███  ▐███       ▀███▀▀██ ███    ███ ███   ███   ███
███   ███  ▄███▄▄▄        ▀███▄███▀        ███   ▀ ███    ███ ███   ███   ███
███   ███ ▀▀███▀▀▀        ████▀██▄         ███     ███    ███ ███   ███   ███
███   ███   ███    █▄    ▐███  ▀███        ███     ███    ███ ███   ███   ███
███   ███   ███    ███  ▄███     ███▄      ███     ███    ███ ███   ███   ███
 ▀█   █▀    ██████████ ████       ███▄    ▄████▀    ▀██████▀   ▀█   ███   █▀ `
