package worker

import (
	"os"
	"testing"

	"github.com/aydin-o/go-teamdesk/internal/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger("test", "teamdesk")
	os.Exit(m.Run())
}
