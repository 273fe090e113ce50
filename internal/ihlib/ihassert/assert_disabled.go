// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

//go:build !ihassert

package ihassert

func True(bool)             {}
func False(bool)            {}
func NoError(error)         {}
func NotNil(...interface{}) {}
