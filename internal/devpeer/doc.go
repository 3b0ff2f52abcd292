// SPDX-License-Identifier: MPL-2.0

// Package devpeer serves a local directory of hooks the way a peer does, so
// hooks can be developed without publishing them.
//
// Module sources are answered with a JavaScript content type regardless of
// their extension; the loader transpiles TypeScript and JSX itself. A request
// carrying an X-Relay-Branch header is served from the sub-directory of that
// name when it exists, and from the root directory otherwise.
package devpeer
