package main

import "time"

func nowStamp() uint32 {
	return uint32(time.Now().Unix())
}
