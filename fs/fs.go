package appfs

import "embed"

// FS holds the SQL migrations, email templates and static assets.
//go:embed migrations/*.sql assets/common-passwords.txt.gz assets/templates/email/*/*
var FS embed.FS
