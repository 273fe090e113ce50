// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

//go:build ihassert

package ihassert

import "github.com/JonasGessner/instancehook/internal/ihlib/iherrors"

func True(c bool) {
	if !c {
		doPanic(iherrors.New("ihassert: unexpected false value"))
	}
}

func False(c bool) {
	if c {
		doPanic(iherrors.New("ihassert: unexpected true value"))
	}
}

func NoError(err error) {
	if err != nil {
		doPanic(iherrors.Wrap(err, "unexpected error"))
	}
}

func NotNil(v ...interface{}) {
	for _, v := range v {
		if v == nil {
			doPanic(iherrors.New("ihassert: unexpected nil value"))
		}
	}
}

func doPanic(err error) {
	panic(err)
}
