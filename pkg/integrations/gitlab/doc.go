// Package gitlab downloads tagged source archives from GitLab.
//
// # Usage
//
//	client := gitlab.NewClient(c, os.Getenv("GITLAB_TOKEN"))
//	data, err := client.Archive(ctx, "group/sub", "lib", "v1.0.0")
//
// GitLab serves archives under the /-/archive/ route:
//
//	https://gitlab.com/{owner}/{repo}/-/archive/{tag}/{repo}-{tag}.zip
//
// # Authentication
//
// A GitLab personal access token is optional. Without a token, only
// public repositories can be accessed. It is sent in the PRIVATE-TOKEN
// header.
package gitlab
