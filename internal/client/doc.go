// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the command-line client runtime.
//
// It wires the local store, the HTTP transport and the sync engine into a
// single process lifecycle and exposes the operations the commands call.
package client
