package runner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDepfile(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "single line",
			data: "a.cpp.o: a.cpp a.h\n",
			want: []string{"a.cpp", "a.h"},
		},
		{
			name: "continuations",
			data: "a.cpp.o: a.cpp \\\n  ../../common/source/common/Common.h \\\n  a.h\n",
			want: []string{"a.cpp", "../../common/source/common/Common.h", "a.h"},
		},
		{
			name: "phony header rules",
			data: "a.cpp.o: a.cpp a.h\n\na.h:\n",
			want: []string{"a.cpp", "a.h"},
		},
		{
			name: "escaped space",
			data: "a.cpp.o: my\\ dir/a.cpp\n",
			want: []string{"my dir/a.cpp"},
		},
		{
			name: "dollar",
			data: "a.cpp.o: a$$b.h\n",
			want: []string{"a$b.h"},
		},
		{
			name: "crlf",
			data: "a.cpp.o: a.cpp \\\r\n a.h\r\n",
			want: []string{"a.cpp", "a.h"},
		},
		{
			name: "empty",
			data: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDepfile(tt.data)
			if err != nil {
				t.Fatalf("parseDepfile() returned error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseDepfile() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDepfileMalformed(t *testing.T) {
	if _, err := parseDepfile("no target here\n"); err == nil {
		t.Error("parseDepfile() of a line without target succeeded")
	}
}
