// SPDX-License-Identifier: MPL-2.0

// Package publish uploads a bundled layer with the Lambda PublishLayerVersion
// API.
package publish
