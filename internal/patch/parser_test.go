package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExtractsTargetsAndHunks(t *testing.T) {
	patch := `diff --git a/src/auth.py b/src/auth.py
--- a/src/auth.py
+++ b/src/auth.py
@@ -1,3 +1,4 @@
 import os
+import hmac
 def login():
     pass
diff --git a/src/db.py b/src/db.py
--- a/src/db.py
+++ b/src/db.py
@@ -10,2 +11,3 @@
 x = 1
+y = 2
@@ -30,1 +32,2 @@
 z = 3
+w = 4
`

	d := Parse(patch)

	assert.Equal(t, []string{"src/auth.py", "src/db.py"}, d.Files)
	assert.Equal(t, 3, d.Hunks)
}

func TestParseSkipsDevNullTargets(t *testing.T) {
	patch := `--- a/src/old.py
+++ /dev/null
@@ -1,2 +0,0 @@
-x = 1
-y = 2
--- /dev/null
+++ b/src/new.py
@@ -0,0 +1,1 @@
+x = 1
`

	d := Parse(patch)

	assert.Equal(t, []string{"src/new.py"}, d.Files)
	assert.Equal(t, 2, d.Hunks)
}

func TestParseStripsTimestampSuffix(t *testing.T) {
	patch := "--- a/src/auth.py\t2026-01-12 10:00:00\n" +
		"+++ b/src/auth.py\t2026-01-12 10:05:00\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-x = 1\n" +
		"+x = 2\n"

	d := Parse(patch)

	assert.Equal(t, []string{"src/auth.py"}, d.Files)
}

func TestParseDeduplicatesRepeatedTargets(t *testing.T) {
	patch := `+++ b/src/auth.py
@@ -1,1 +1,1 @@
+++ b/src/auth.py
@@ -5,1 +5,1 @@
`

	d := Parse(patch)

	assert.Equal(t, []string{"src/auth.py"}, d.Files)
	assert.Equal(t, 2, d.Hunks)
}

func TestParsePlainPathsWithoutPrefix(t *testing.T) {
	patch := `--- src/auth.py
+++ src/auth.py
@@ -1,1 +1,1 @@
-x = 1
+x = 2
`

	d := Parse(patch)

	assert.Equal(t, []string{"src/auth.py"}, d.Files)
}

func TestParseEmptyPatch(t *testing.T) {
	d := Parse("")

	assert.Empty(t, d.Files)
	assert.Zero(t, d.Hunks)
}
